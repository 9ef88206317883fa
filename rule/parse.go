package rule

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Parse reads rules from a YAML document, either a plain list of rules
// or a mapping with a top level "rules" key. An empty document yields no rules.
func Parse(r io.Reader) ([]Rule, error) {
	if r == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var rules []Rule
	switch doc := node.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		err = doc.Decode(&rules)
	case yaml.MappingNode:
		var f ruleFile
		err = doc.Decode(&f)
		rules = f.Rules
	default:
		err = errors.New("expected a list of rules")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
	}
	return rules, nil
}

// ParseLine parses a single rule written as a YAML flow mapping,
// e.g. {target: Dropbox, action: block, priority: 10}.
func ParseLine(s string) (Rule, error) {
	var r Rule
	if err := yaml.Unmarshal([]byte(s), &r); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}
