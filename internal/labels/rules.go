package labels

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML layout of a rules file:
//
//	rules:
//	  - prefix: "failed to provide off-street parking"
//	    label: "Failed to provide off-street parking"
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

var ErrEmptyRules = errors.New("rules file defines no rules")

// LoadRules reads an ordered rule list from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return DecodeRules(f)
}

// DecodeRules parses YAML rules, keeping document order. Prefixes are
// normalized the same way descriptions are.
func DecodeRules(r io.Reader) ([]Rule, error) {
	var doc rulesFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyRules
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, ErrEmptyRules
	}
	out := make([]Rule, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		r.Prefix = Normalize(r.Prefix)
		if r.Prefix == "" || r.Label == "" {
			return nil, fmt.Errorf("rule %d: prefix and label are required", i+1)
		}
		out = append(out, r)
	}
	return out, nil
}

// FromFile returns a Normalizer over the rules in path, or the default
// dictionary when path is empty.
func FromFile(path string) (*Normalizer, error) {
	if path == "" {
		return Default(), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(rules), nil
}
