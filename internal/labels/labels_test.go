package labels

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelFor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", Unknown},
		{"whitespace", "  \n ", Unknown},
		{"upper case prefix", "FAILED TO TIMELY NOTIFY COMMISSION OF A MATERIAL INFORMATION ...", "Late update to Commission"},
		{"leading whitespace", "   Unreported change of ownership at 12 Main St", "Ownership not filed"},
		{"line break in body", "Failed to provide\noff-street parking", "Failed to provide off-street parking"},
		{"unmatched keeps raw text", "Operated\nwithout permit", "Operated\nwithout permit..."},
		{"line break after prefix", "failed to provide off-street parking\r\nfor vehicles", "Failed to provide off-street parking"},
		{"short unmatched", "no trade waste license", "no trade waste license..."},
		{"long unmatched", strings.Repeat("x", 50), strings.Repeat("x", 40) + "..."},
		{"exactly forty", strings.Repeat("y", 40), strings.Repeat("y", 40) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelFor(tt.in))
		})
	}
}

func TestLabelForFirstMatchWins(t *testing.T) {
	// The "(e)" rule and the bare trade waste rule share text but not a prefix.
	assert.Equal(t, "Uncertified or unsafe trade waste vehicle",
		LabelFor("(e)   a trade waste vehicle must not be operated unless such vehicle is in safe operating condition"))
	assert.Equal(t, "Inspection proof not in truck",
		LabelFor("A trade waste vehicle must not be operated unless such vehicle is in safe operating condition"))

	// A broader rule placed ahead of the default table shadows the default match.
	rules := append([]Rule{{Prefix: "a trade waste vehicle", Label: "Trade waste vehicle"}}, DefaultRules...)
	assert.Equal(t, "Trade waste vehicle", New(rules).Label("A trade waste vehicle must not be operated unless"))

	n := New([]Rule{{Prefix: "a trade", Label: "first"}, {Prefix: "a trade waste", Label: "second"}})
	assert.Equal(t, "first", n.Label("A trade waste vehicle must not be operated unless"))
}

func TestDefaultRulesPrefixDisjoint(t *testing.T) {
	// No default prefix starts another, so table order never changes a default label.
	for i, a := range DefaultRules {
		for j, b := range DefaultRules {
			if i != j {
				assert.False(t, strings.HasPrefix(b.Prefix, a.Prefix), "rule %d shadows rule %d", i+1, j+1)
			}
		}
	}
}

func TestLabelForDeterministic(t *testing.T) {
	for _, r := range DefaultRules {
		a := LabelFor(r.Prefix + " trailing text")
		b := LabelFor(r.Prefix + " trailing text")
		assert.Equal(t, a, b)
	}
}

func TestTruncateMultibyte(t *testing.T) {
	in := strings.Repeat("é", 45)
	got := LabelFor(in)
	assert.Equal(t, strings.Repeat("é", 40)+Ellipsis, got)
}

func TestNormalizerRulesCopy(t *testing.T) {
	n := Default()
	rules := n.Rules()
	rules[0].Label = "changed"
	assert.Equal(t, "Late update to Commission", n.Rules()[0].Label)
}

func TestDecodeRules(t *testing.T) {
	doc := `
rules:
  - prefix: "  Unreported Change  "
    label: Ownership
  - prefix: failed to provide
    label: Parking
`
	rules, err := DecodeRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, Rule{Prefix: "unreported change", Label: "Ownership"}, rules[0])
	assert.Equal(t, "Parking", rules[1].Label)

	_, err = DecodeRules(strings.NewReader("rules: []"))
	assert.ErrorIs(t, err, ErrEmptyRules)

	_, err = DecodeRules(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyRules)

	_, err = DecodeRules(strings.NewReader("rules:\n  - prefix: x\n"))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	n, err := FromFile("")
	require.NoError(t, err)
	assert.Len(t, n.Rules(), len(DefaultRules))

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - prefix: abc\n    label: ABC\n"), 0o644))
	n, err = FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ABC", n.Label("ABCdef"))

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
