// Package labels maps raw BIC rule descriptions to short category labels.
//
// Matching is an ordered first-match over rule prefixes: the first rule whose
// prefix the normalized description starts with wins. Rule order is part of
// the contract, so rules are kept in a slice, never a map.
package labels

import (
	"strings"
	"unicode/utf8"
)

const (
	// Unknown is the label for an absent description.
	Unknown = "Unknown"
	// Ellipsis is appended to truncated descriptions.
	Ellipsis = "..."
	// TruncateRunes is how much of an unmatched description is kept.
	TruncateRunes = 40
)

// Rule pairs a normalized description prefix with its short label.
type Rule struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	Label  string `yaml:"label" json:"label"`
}

// Matches reports whether the normalized description starts with the rule prefix.
func (r Rule) Matches(normalized string) bool {
	return strings.HasPrefix(normalized, r.Prefix)
}

// DefaultRules is the dictionary of common BIC violations.
var DefaultRules = []Rule{
	{"failed to timely notify commission of a material information", "Late update to Commission"},
	{"a licensee must maintain copies of all inspection and certification of repair forms", "Missing inspection and or repair forms"},
	{"(e)   a trade waste vehicle must not be operated unless such vehicle is in safe operating", "Uncertified or unsafe trade waste vehicle"},
	{"a registrant must maintain copies of all daily inspection reports required by 17 rcny ? 7-03(f) for at least five (5) years", "Missing daily inspection logs"},
	{"an applicant for registration and a registrant", "No notice to the Commission of business changes"},
	{"each vehicle having a gross vehicle weight rating of", "Missing front mirror on truck"},
	{"a registrant must maintain copies of all inspection and certification of repair forms required by 17", "Missing 6-month repair records in vehicle"},
	{"a trade waste vehicle must not be operated unless", "Inspection proof not in truck"},
	{"it shall be unlawful for any person to operate a business for the purpose of", "No trade waste license"},
	{"removed collected or disposed of trade waste or without the proper commission issued license", "Unauthorized waste disposal"},
	{"failed to provide off-street parking", "Failed to provide off-street parking"},
	{"unreported change of ownership", "Ownership not filed"},
}

// Normalizer labels descriptions against an ordered rule list.
// The zero value has no rules and labels everything by truncation.
type Normalizer struct {
	rules []Rule
}

// New returns a Normalizer over a copy of rules.
func New(rules []Rule) *Normalizer {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Normalizer{rules: cp}
}

// Default returns a Normalizer over DefaultRules.
func Default() *Normalizer {
	return New(DefaultRules)
}

// Rules returns a copy of the rule list in evaluation order.
func (n *Normalizer) Rules() []Rule {
	cp := make([]Rule, len(n.rules))
	copy(cp, n.rules)
	return cp
}

// Normalize lower-cases and trims s, then turns line breaks into spaces.
func Normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

// Label returns the short label for a raw description.
func (n *Normalizer) Label(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Unknown
	}
	norm := Normalize(raw)
	for _, r := range n.rules {
		if r.Matches(norm) {
			return r.Label
		}
	}
	return truncate(raw, TruncateRunes) + Ellipsis
}

var defaultNormalizer = Default()

// LabelFor labels raw against DefaultRules.
func LabelFor(raw string) string {
	return defaultNormalizer.Label(raw)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
