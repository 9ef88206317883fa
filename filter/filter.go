// Package filter classifies new connections and accounts their traffic.
package filter

import (
	"context"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gost/core/metrics"
	"github.com/netwarden/warden/cache"
	"github.com/netwarden/warden/flow"
	"github.com/netwarden/warden/internal/matcher"
	xlogger "github.com/netwarden/warden/logger"
	xmetrics "github.com/netwarden/warden/metrics"
	"github.com/netwarden/warden/observer"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

type decisionEntry struct {
	decision rule.Decision
	process  process.Identity
}

// Filter owns every component of the classification pipeline.
// HandleNewFlow and HandleBytes are called concurrently by the connection hook,
// the control methods are called from the configuration path.
type Filter struct {
	enabled atomic.Bool
	started time.Time

	trust     *trust.Engine
	rules     *rule.Engine
	resolver  *process.Resolver
	grouper   *process.Grouper
	observer  *observer.Observer
	decisions *cache.Cache[flow.Key, decisionEntry]
	// generation is bumped before every purge of decisions.
	generation atomic.Uint64

	exemptDomains matcher.Matcher
	exemptIPs     matcher.Matcher
	exemptCIDRs   matcher.Matcher
	exemptPIDs    map[int]struct{}

	rulesMu     sync.Mutex
	staticRules []rule.Rule
	loadedRules []rule.Rule

	warned  *gocache.Cache
	limiter *rate.Limiter

	cancelFunc context.CancelFunc
	options    options
}

func New(opts ...Option) *Filter {
	options := options{
		enabled:       true,
		latencyBudget: DefaultLatencyBudget,
		exemptHosts:   DefaultExemptHosts,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = xlogger.Nop()
	}
	log := options.logger
	if options.trust == nil {
		options.trust = trust.NewEngine(trust.LoggerOption(log.WithFields(map[string]any{"kind": "trust"})))
	}
	if options.rules == nil {
		options.rules = rule.NewEngine(rule.LoggerOption(log.WithFields(map[string]any{"kind": "rule"})))
	}
	if options.resolver == nil {
		options.resolver = process.NewResolver(nil, process.LoggerOption(log.WithFields(map[string]any{"kind": "process"})))
	}
	if options.grouper == nil {
		options.grouper = process.NewGrouper()
	}
	if options.observer == nil {
		options.observer = observer.New(observer.LoggerOption(log.WithFields(map[string]any{"kind": "observer"})))
	}

	ctx, cancel := context.WithCancel(context.Background())

	f := &Filter{
		started:    time.Now(),
		trust:      options.trust,
		rules:      options.rules,
		resolver:   options.resolver,
		grouper:    options.grouper,
		observer:   options.observer,
		decisions:  cache.New[flow.Key, decisionEntry](options.decisionCache, cache.PolicyOption(options.cachePolicy)),
		exemptPIDs: map[int]struct{}{os.Getpid(): {}},
		warned:     gocache.New(DefaultWarnInterval, 2*DefaultWarnInterval),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		cancelFunc: cancel,
		options:    options,
	}
	f.enabled.Store(options.enabled)
	for _, pid := range options.exemptPIDs {
		f.exemptPIDs[pid] = struct{}{}
	}
	f.setExemptHosts(options.exemptHosts)

	f.trust.OnChange(func(trust.State) {
		f.purge()
	})

	if f.hasSources() {
		if err := f.reload(ctx); err != nil {
			log.Warnf("reload: %v", err)
		}
		if options.period > 0 {
			go f.periodReload(ctx)
		}
	}

	return f
}

func (f *Filter) setExemptHosts(hosts []string) {
	var ips []net.IP
	var inets []*net.IPNet
	var domains []string
	for _, host := range hosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if ip := net.ParseIP(host); ip != nil {
			ips = append(ips, ip)
			continue
		}
		if _, inet, err := net.ParseCIDR(host); err == nil {
			inets = append(inets, inet)
			continue
		}
		domains = append(domains, host)
	}
	f.exemptIPs = matcher.IPMatcher(ips)
	f.exemptCIDRs = matcher.CIDRMatcher(inets)
	f.exemptDomains = matcher.DomainMatcher(domains)
}

// HandleNewFlow classifies a new connection. It never fails:
// malformed events and internal errors resolve to allow.
func (f *Filter) HandleNewFlow(ev flow.Event) (verdict flow.Verdict) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			f.options.logger.Errorf("handle flow: %v", v)
			verdict = flow.VerdictAllow
		}
	}()

	if !f.enabled.Load() {
		return flow.VerdictAllow
	}

	key, err := ev.Key()
	if err != nil {
		f.warn("flow:"+err.Error(), "malformed flow, allowing: %v", err)
		f.observer.RecordAllowed()
		return flow.VerdictAllow
	}

	pid := ev.PID
	if pid <= 0 && len(ev.Caller) > 0 {
		pid, _ = process.PIDFromToken(ev.Caller)
	}
	if f.isExempt(pid, key.RemoteHost) {
		return flow.VerdictAllow
	}

	entry, ok := f.decisions.Get(key)
	f.cacheMetric("decision", ok)
	if !ok {
		entry = f.decide(pid, key)
	}

	d := entry.decision
	switch d.Action() {
	case rule.ActionBlock:
		f.observer.Block(key, entry.process)
	case rule.ActionInspect:
		f.observer.RecordAllowed()
		f.observer.Track(key, entry.process)
	default:
		f.observer.RecordAllowed()
	}
	if d.ShouldRecord() {
		f.observer.Record(observer.Observation{
			Time:       start,
			Process:    entry.process,
			Trusted:    f.trust.IsTrusted(),
			Action:     d.Action(),
			Reason:     d.Reason(),
			RemoteHost: key.RemoteHost,
			RemotePort: key.RemotePort,
		})
	}

	xmetrics.GetCounter(xmetrics.MetricDecisionsCounter, metrics.Labels{
		"action": string(d.Action()),
		"source": string(d.Source()),
	}).Inc()
	f.checkBudget(start, entry.process)

	return toVerdict(d)
}

// decide evaluates key and caches the decision. A decision taken while the
// cache was purged is dropped again, the next flow evaluates under the new state.
func (f *Filter) decide(pid int, key flow.Key) decisionEntry {
	gen := f.generation.Load()

	p := f.resolver.Identify(pid)
	entry := decisionEntry{
		decision: f.rules.Evaluate(p, key, f.trust.State().Rule()),
		process:  p,
	}
	f.decisions.Put(key, entry)

	if f.generation.Load() != gen {
		f.decisions.Delete(key)
	}
	return entry
}

// purge drops every cached decision.
func (f *Filter) purge() {
	f.generation.Add(1)
	f.decisions.Purge()
}

func toVerdict(d rule.Decision) flow.Verdict {
	switch d.Action() {
	case rule.ActionBlock:
		return flow.VerdictDrop
	case rule.ActionInspect:
		return flow.VerdictInspect
	}
	return flow.VerdictAllow
}

// HandleBytes accounts n bytes read on flow key. Flows are never blocked mid-stream.
func (f *Filter) HandleBytes(dir flow.Direction, n int, key flow.Key) flow.Verdict {
	if n <= 0 || !f.enabled.Load() {
		return flow.VerdictAllow
	}
	f.observer.RecordBytes(dir, uint64(n), key)
	xmetrics.GetCounter(xmetrics.MetricObservedBytesCounter, metrics.Labels{
		"direction": string(dir),
	}).Add(float64(n))
	return flow.VerdictAllow
}

// HandleClose releases the byte counters and the cached decision of a closed flow.
func (f *Filter) HandleClose(key flow.Key) {
	f.observer.ForgetFlow(key)
	f.decisions.Delete(key)
}

// HandleExit drops the cached identity of an exited process so a reused pid is resolved again.
func (f *Filter) HandleExit(pid int) {
	if pid > 0 {
		f.resolver.Forget(pid)
	}
}

func (f *Filter) isExempt(pid int, host string) bool {
	if _, ok := f.exemptPIDs[pid]; ok && pid > 0 {
		return true
	}
	return f.exemptIPs.Match(host) ||
		f.exemptCIDRs.Match(host) ||
		f.exemptDomains.Match(host)
}

func (f *Filter) checkBudget(start time.Time, p process.Identity) {
	elapsed := time.Since(start)
	xmetrics.GetObserver(xmetrics.MetricDecisionDurationObserver, metrics.Labels{}).Observe(elapsed.Seconds())
	if f.options.latencyBudget <= 0 || elapsed <= f.options.latencyBudget {
		return
	}
	xmetrics.GetCounter(xmetrics.MetricBudgetViolationsCounter, metrics.Labels{}).Inc()
	f.warn("budget:"+p.ID(), "decision for %s took %s, budget %s", p, elapsed, f.options.latencyBudget)
}

// warn logs at most once per interval for the same key, and never more than
// the limiter allows overall.
func (f *Filter) warn(key string, format string, args ...any) {
	if !f.limiter.Allow() {
		return
	}
	if err := f.warned.Add(key, struct{}{}, gocache.DefaultExpiration); err != nil {
		return
	}
	f.options.logger.Warnf(format, args...)
}

func (f *Filter) cacheMetric(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	xmetrics.GetCounter(xmetrics.MetricCacheRequestsCounter, metrics.Labels{
		"cache":  name,
		"result": result,
	}).Inc()
}

// Close stops the rule source reload and closes the loaders.
func (f *Filter) Close() error {
	f.cancelFunc()
	for _, l := range []interface{ Close() error }{f.options.fileLoader, f.options.redisLoader, f.options.httpLoader} {
		if l != nil {
			l.Close()
		}
	}
	return nil
}
