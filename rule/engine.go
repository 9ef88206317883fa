package rule

import (
	"strings"
	"sync/atomic"

	"github.com/go-gost/core/logger"
	"github.com/netwarden/warden/flow"
	xlogger "github.com/netwarden/warden/logger"
	"github.com/netwarden/warden/process"
)

// Trust is the trust state a decision is taken under.
type Trust struct {
	Trusted bool
	// Restricted networks are trusted but still evaluated against rules.
	Restricted bool
	Network    string
	// Overrides are the rules of the matched network, evaluated before the user rules.
	Overrides *RuleSet
}

type options struct {
	defaults []Rule
	heavy    []string
	logger   logger.Logger
}

type Option func(opts *options)

// DefaultRulesOption replaces the built-in rule table.
func DefaultRulesOption(rules []Rule) Option {
	return func(opts *options) {
		opts.defaults = rules
	}
}

// HeavyProcessesOption replaces the bandwidth-heavy name table.
func HeavyProcessesOption(names []string) Option {
	return func(opts *options) {
		opts.heavy = names
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

type Stats struct {
	Evaluations uint64 `json:"evaluations"`
	Allowed     uint64 `json:"allowed"`
	Blocked     uint64 `json:"blocked"`
	Inspected   uint64 `json:"inspected"`
}

// Engine evaluates flows against the trust state and the loaded rules.
// The user rule set is swapped atomically, Evaluate never observes a partial update.
type Engine struct {
	rules    atomic.Pointer[RuleSet]
	defaults *RuleSet
	heavy    []string

	evaluations atomic.Uint64
	allowed     atomic.Uint64
	blocked     atomic.Uint64
	inspected   atomic.Uint64

	options options
}

func NewEngine(opts ...Option) *Engine {
	options := options{
		defaults: DefaultRules,
		heavy:    HeavyProcesses,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = xlogger.Nop()
	}

	e := &Engine{
		defaults: MustCompile(options.defaults),
		options:  options,
	}
	for _, s := range options.heavy {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			e.heavy = append(e.heavy, s)
		}
	}
	e.rules.Store(&RuleSet{})
	return e
}

// SetRules replaces the user rules. On error the previous rules stay loaded.
func (e *Engine) SetRules(rules []Rule) error {
	set, err := Compile(rules)
	if err != nil {
		return err
	}
	e.rules.Store(set)
	e.options.logger.Debugf("loaded %d user rules", set.Len())
	return nil
}

// Rules returns the user rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules.Load().Rules()
}

func (e *Engine) DefaultRules() []Rule {
	return e.defaults.Rules()
}

// Evaluate decides the fate of flow f opened by p under trust t.
// The result only depends on the arguments and the loaded rules.
func (e *Engine) Evaluate(p process.Identity, f flow.Key, t Trust) Decision {
	d := e.evaluate(&p, t)
	e.count(d)

	if e.options.logger.IsLevelEnabled(logger.TraceLevel) {
		e.options.logger.Tracef("%s %s: %s (%s)", p, f, d.action, d.reason)
	}
	return d
}

func (e *Engine) evaluate(p *process.Identity, t Trust) Decision {
	if t.Trusted && !t.Restricted {
		return newDecision(ActionAllow, SourceTrusted, "Trusted network: "+t.Network)
	}

	if r, ok := t.Overrides.Match(p); ok {
		return newDecision(r.Action, SourceOverride, ruleReason(r, t.Network))
	}
	if r, ok := e.rules.Load().Match(p); ok {
		return newDecision(r.Action, SourceUser, ruleReason(r, ""))
	}
	if r, ok := e.defaults.Match(p); ok {
		return newDecision(r.Action, SourceDefault, ruleReason(r, ""))
	}

	if t.Trusted {
		return newDecision(ActionAllow, SourceFallback, "Restricted network: no matching rule")
	}

	name := strings.ToLower(p.Name)
	for _, s := range e.heavy {
		if strings.Contains(name, s) {
			return newDecision(ActionBlock, SourceHeavy, "Bandwidth-heavy process on untrusted network")
		}
	}
	if IsBackground(p) {
		return newDecision(ActionBlock, SourceBackground, "Background process on untrusted network")
	}
	return newDecision(ActionAllow, SourceFallback, "Foreground process on untrusted network")
}

func ruleReason(r Rule, network string) string {
	reason := r.Reason
	if reason == "" {
		reason = "Rule " + r.Target
	}
	if network != "" {
		reason += " (" + network + ")"
	}
	return reason
}

// IsBackground reports whether p looks like a process working without user interaction.
func IsBackground(p *process.Identity) bool {
	switch p.Kind {
	case process.KindService, process.KindDaemon, process.KindUnknown:
		return true
	}
	name := strings.ToLower(p.Name)
	for _, s := range backgroundMarkers {
		if strings.Contains(name, s) {
			return true
		}
	}
	return process.IsDaemonName(p.Name)
}

func (e *Engine) count(d Decision) {
	e.evaluations.Add(1)
	switch d.action {
	case ActionBlock:
		e.blocked.Add(1)
	case ActionInspect:
		e.inspected.Add(1)
	default:
		e.allowed.Add(1)
	}
}

func (e *Engine) Stats() Stats {
	return Stats{
		Evaluations: e.evaluations.Load(),
		Allowed:     e.allowed.Load(),
		Blocked:     e.blocked.Load(),
		Inspected:   e.inspected.Load(),
	}
}

func (e *Engine) ResetStats() {
	e.evaluations.Store(0)
	e.allowed.Store(0)
	e.blocked.Store(0)
	e.inspected.Store(0)
}
