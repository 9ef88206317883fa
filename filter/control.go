package filter

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-gost/core/metrics"
	"github.com/netwarden/warden/cache"
	"github.com/netwarden/warden/flow"
	xmetrics "github.com/netwarden/warden/metrics"
	"github.com/netwarden/warden/network"
	"github.com/netwarden/warden/observer"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
)

func (f *Filter) SetEnabled(b bool) {
	if f.enabled.Swap(b) != b {
		f.purge()
		f.options.logger.Infof("filtering enabled: %t", b)
	}
}

func (f *Filter) IsEnabled() bool {
	return f.enabled.Load()
}

// UpdateNetworks replaces the trusted networks. On error nothing changes.
func (f *Filter) UpdateNetworks(cfgs []trust.NetworkConfig) error {
	if err := f.trust.SetNetworks(cfgs); err != nil {
		return err
	}
	f.purge()
	return nil
}

func (f *Filter) Networks() []trust.NetworkConfig {
	return f.trust.Networks()
}

// UpdateNetwork applies a new network observation.
func (f *Filter) UpdateNetwork(n *network.Network) trust.State {
	return f.trust.UpdateNetwork(n)
}

// UpdateRules replaces the configured user rules, rules loaded from the
// rule sources are kept. On error nothing changes.
func (f *Filter) UpdateRules(rules []rule.Rule) error {
	f.rulesMu.Lock()
	defer f.rulesMu.Unlock()

	if err := f.applyRules(slices.Clone(rules), f.loadedRules); err != nil {
		return err
	}
	f.staticRules = slices.Clone(rules)
	return nil
}

// applyRules must be called with rulesMu held.
func (f *Filter) applyRules(static, loaded []rule.Rule) error {
	all := make([]rule.Rule, 0, len(static)+len(loaded))
	all = append(all, static...)
	all = append(all, loaded...)
	if err := f.rules.SetRules(all); err != nil {
		return err
	}
	f.purge()

	xmetrics.GetGauge(xmetrics.MetricRulesGauge, metrics.Labels{"source": "config"}).Set(float64(len(static)))
	xmetrics.GetGauge(xmetrics.MetricRulesGauge, metrics.Labels{"source": "loader"}).Set(float64(len(loaded)))
	return nil
}

// Rules returns the effective user rules in evaluation order.
func (f *Filter) Rules() []rule.Rule {
	return f.rules.Rules()
}

func (f *Filter) DefaultRules() []rule.Rule {
	return f.rules.DefaultRules()
}

type Counts struct {
	Networks  int `json:"networks"`
	Rules     int `json:"rules"`
	Decisions int `json:"decisions"`
	Processes int `json:"processes"`
}

type Status struct {
	Enabled bool            `json:"enabled"`
	Trusted bool            `json:"trusted"`
	Trust   *trust.State    `json:"trust"`
	Counts  Counts          `json:"counts"`
	Totals  observer.Totals `json:"totals"`
	Uptime  time.Duration   `json:"uptime"`
	Started time.Time       `json:"started"`
}

func (f *Filter) Status() Status {
	st := f.trust.State()
	return Status{
		Enabled: f.enabled.Load(),
		Trusted: st.Trusted,
		Trust:   st,
		Counts: Counts{
			Networks:  len(f.trust.Networks()),
			Rules:     len(f.rules.Rules()),
			Decisions: f.decisions.Len(),
			Processes: f.resolver.CacheStats().Len,
		},
		Totals:  f.observer.Totals(),
		Uptime:  time.Since(f.started),
		Started: f.started,
	}
}

// GroupStats sums the statistics of an application and its helpers.
type GroupStats struct {
	Parent       process.Identity   `json:"parent"`
	Helpers      []process.Identity `json:"helpers,omitempty"`
	Count        uint64             `json:"count"`
	BytesBlocked uint64             `json:"bytesBlocked"`
	BytesAllowed uint64             `json:"bytesAllowed"`
	BlockedFlows uint64             `json:"blockedFlows"`
	Bursty       bool               `json:"bursty"`
}

type Report struct {
	observer.Statistics
	Groups        []GroupStats `json:"groups"`
	Engine        rule.Stats   `json:"engine"`
	DecisionCache cache.Stats  `json:"decisionCache"`
	IdentityCache cache.Stats  `json:"identityCache"`
}

func (f *Filter) Statistics() Report {
	return Report{
		Statistics:    f.observer.Statistics(),
		Groups:        f.groups(f.observer.Snapshot().Processes),
		Engine:        f.rules.Stats(),
		DecisionCache: f.decisions.Stats(),
		IdentityCache: f.resolver.CacheStats(),
	}
}

func (f *Filter) groups(stats []observer.ProcessStats) []GroupStats {
	byID := make(map[string]observer.ProcessStats, len(stats))
	ids := make([]process.Identity, 0, len(stats))
	for _, s := range stats {
		byID[s.Process.ID()] = s
		ids = append(ids, s.Process)
	}

	var out []GroupStats
	for _, g := range f.grouper.Group(ids) {
		gs := GroupStats{
			Parent:  g.Parent,
			Helpers: g.Helpers,
		}
		members := append([]process.Identity{g.Parent}, g.Helpers...)
		for _, m := range members {
			s, ok := byID[m.ID()]
			if !ok {
				continue
			}
			gs.Count += s.Count
			gs.BytesBlocked += s.BytesBlocked
			gs.BytesAllowed += s.BytesAllowed
			gs.BlockedFlows += s.BlockedFlows
			gs.Bursty = gs.Bursty || s.Bursty
		}
		out = append(out, gs)
	}
	slices.SortStableFunc(out, func(a, b GroupStats) int {
		return cmp.Compare(b.BytesBlocked+b.BytesAllowed, a.BytesBlocked+a.BytesAllowed)
	})
	return out
}

// RecentTraffic returns up to limit observations, newest first.
func (f *Filter) RecentTraffic(limit int) []observer.Observation {
	return f.observer.Recent(limit)
}

// ProcessTraffic returns the recorded observations of a process.
func (f *Filter) ProcessTraffic(id string) []observer.Observation {
	return f.observer.ForProcess(id)
}

func (f *Filter) ClearStatistics() {
	f.observer.Clear()
	f.rules.ResetStats()
	f.options.logger.Info("statistics cleared")
}

// ReevaluateNetwork detects the attached network again. Decisions taken
// meanwhile use the previous trust state.
func (f *Filter) ReevaluateNetwork(ctx context.Context) (trust.State, error) {
	return f.trust.Reevaluate(ctx)
}

// Subscribe streams recorded observations, see observer.Observer.Subscribe.
func (f *Filter) Subscribe() (<-chan observer.Observation, func()) {
	return f.observer.Subscribe()
}

// Snapshot copies the observer state for reporting.
func (f *Filter) Snapshot() observer.Snapshot {
	return f.observer.Snapshot()
}

// IsUpdated reports whether traffic was accounted since the last call.
func (f *Filter) IsUpdated() bool {
	return f.observer.IsUpdated()
}

// Check classifies a hypothetical flow of process p without caching or recording it.
func (f *Filter) Check(p process.Identity, ev flow.Event) (rule.Decision, error) {
	key, err := ev.Key()
	if err != nil {
		return rule.Decision{}, err
	}
	return f.rules.Evaluate(p, key, f.trust.State().Rule()), nil
}

// Identify resolves the process behind pid.
func (f *Filter) Identify(pid int) process.Identity {
	return f.resolver.Identify(pid)
}
