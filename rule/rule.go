// Package rule holds the decision function of the bandwidth guard.
package rule

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/netwarden/warden/internal/matcher"
	"github.com/netwarden/warden/process"
)

var (
	ErrInvalidRule = errors.New("rule: invalid rule")
)

type Action string

const (
	ActionAllow   Action = "allow"
	ActionBlock   Action = "block"
	ActionInspect Action = "inspect"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAllow, ActionBlock, ActionInspect:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRule, s)
}

// Rule applies Action to the processes matching Target.
// Among matching rules the higher Priority wins.
type Rule struct {
	Target   string `json:"target" yaml:"target"`
	Action   Action `json:"action" yaml:"action"`
	Priority int    `json:"priority" yaml:"priority"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("%w: empty target", ErrInvalidRule)
	}
	if _, err := ParseAction(string(r.Action)); err != nil {
		return err
	}
	return nil
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s (priority %d)", r.Action, r.Target, r.Priority)
}

type compiledRule struct {
	Rule
	lower string
	glob  matcher.Matcher
}

// match reports whether the rule targets p: the target equals the bundle id,
// equals the name ignoring case, is a substring of the name ignoring case,
// or is a wildcard pattern matching the bundle id or the name.
func (r *compiledRule) match(p *process.Identity) bool {
	if r.glob != nil {
		return (p.BundleID != "" && r.glob.Match(p.BundleID)) || r.glob.Match(p.Name)
	}
	if p.BundleID != "" && p.BundleID == r.Target {
		return true
	}
	if p.Name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(p.Name), r.lower)
}

// RuleSet is an immutable list of rules sorted by descending priority.
// Rules with equal priority keep their registration order.
type RuleSet struct {
	rules []compiledRule
}

// Compile validates and sorts rules. An invalid rule fails the whole set.
func Compile(rules []Rule) (*RuleSet, error) {
	set := &RuleSet{
		rules: make([]compiledRule, 0, len(rules)),
	}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
		r.Action, _ = ParseAction(string(r.Action))
		r.Target = strings.TrimSpace(r.Target)

		cr := compiledRule{
			Rule:  r,
			lower: strings.ToLower(r.Target),
		}
		if matcher.IsWildcard(r.Target) {
			cr.glob = matcher.FoldWildcardMatcher([]string{r.Target})
		}
		set.rules = append(set.rules, cr)
	}
	slices.SortStableFunc(set.rules, func(a, b compiledRule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return set, nil
}

// MustCompile is Compile for built-in tables.
func MustCompile(rules []Rule) *RuleSet {
	set, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return set
}

// Match returns the first rule targeting p.
func (s *RuleSet) Match(p *process.Identity) (Rule, bool) {
	if s == nil {
		return Rule{}, false
	}
	for i := range s.rules {
		if s.rules[i].match(p) {
			return s.rules[i].Rule, true
		}
	}
	return Rule{}, false
}

// Rules returns the rules in evaluation order.
func (s *RuleSet) Rules() []Rule {
	if s == nil {
		return nil
	}
	rules := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, r.Rule)
	}
	return rules
}

func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
