// Package observer records classified traffic and aggregates it per process.
package observer

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gost/core/logger"
	"github.com/netwarden/warden/flow"
	xlogger "github.com/netwarden/warden/logger"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
)

const (
	DefaultHistory        = 1000
	DefaultMaxFlows       = 4096
	DefaultBurstThreshold = 10 << 20
	TopN                  = 10

	subscriberBuffer = 64
)

// Observation is a classified flow.
type Observation struct {
	Time       time.Time        `json:"time"`
	Process    process.Identity `json:"process"`
	BytesIn    uint64           `json:"bytesIn"`
	BytesOut   uint64           `json:"bytesOut"`
	Trusted    bool             `json:"trusted"`
	Action     rule.Action      `json:"action,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	RemoteHost string           `json:"remoteHost,omitempty"`
	RemotePort int              `json:"remotePort,omitempty"`
}

// ProcessStats aggregates the observations of one process.
type ProcessStats struct {
	Process      process.Identity `json:"process"`
	Count        uint64           `json:"count"`
	BytesBlocked uint64           `json:"bytesBlocked"`
	BytesAllowed uint64           `json:"bytesAllowed"`
	BlockedFlows uint64           `json:"blockedFlows"`
	LastSeen     time.Time        `json:"lastSeen"`
	// Bursty is set once the process moved more than the burst threshold
	// in a single observation or flow.
	Bursty bool `json:"bursty"`
}

type procEntry struct {
	// guarded by Observer.mu
	process  process.Identity
	count    uint64
	lastSeen time.Time

	blocked      atomic.Uint64
	allowed      atomic.Uint64
	blockedFlows atomic.Uint64
	// tracked counts the allowed flows whose bytes are attributed to the process.
	tracked atomic.Uint64
	bursty  atomic.Bool
}

// estimate is the average number of bytes of an allowed flow of the process.
func (e *procEntry) estimate() uint64 {
	n := e.tracked.Load()
	if n == 0 {
		return 0
	}
	return e.allowed.Load() / n
}

func (e *procEntry) stats() ProcessStats {
	return ProcessStats{
		Process:      e.process,
		Count:        e.count,
		BytesBlocked: e.blocked.Load(),
		BytesAllowed: e.allowed.Load(),
		BlockedFlows: e.blockedFlows.Load(),
		LastSeen:     e.lastSeen,
		Bursty:       e.bursty.Load(),
	}
}

type flowOwner struct {
	id      string
	entry   *procEntry
	blocked bool
}

type flowEntry struct {
	in    atomic.Uint64
	out   atomic.Uint64
	owner atomic.Pointer[flowOwner]
}

// FlowStats are the bytes seen on a single flow.
type FlowStats struct {
	Key      flow.Key `json:"key"`
	BytesIn  uint64   `json:"bytesIn"`
	BytesOut uint64   `json:"bytesOut"`
	Process  string   `json:"process,omitempty"`
	Blocked  bool     `json:"blocked,omitempty"`
}

type options struct {
	history        int
	maxFlows       int
	burstThreshold uint64
	logger         logger.Logger
}

type Option func(opts *options)

// HistoryOption sets the capacity of the observation ring.
func HistoryOption(n int) Option {
	return func(opts *options) {
		opts.history = n
	}
}

func MaxFlowsOption(n int) Option {
	return func(opts *options) {
		opts.maxFlows = n
	}
}

func BurstThresholdOption(n uint64) Option {
	return func(opts *options) {
		opts.burstThreshold = n
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Observer keeps the observation history, per-flow byte counters and
// per-process aggregates. The history and the aggregates share one lock,
// the flow counters have their own.
type Observer struct {
	mu        sync.Mutex
	ring      *Ring[Observation]
	processes map[string]*procEntry

	flowMu sync.RWMutex
	flows  map[flow.Key]*flowEntry

	counters Counters

	subMu       sync.Mutex
	subscribers map[chan Observation]struct{}

	options options
}

func New(opts ...Option) *Observer {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.history <= 0 {
		options.history = DefaultHistory
	}
	if options.maxFlows <= 0 {
		options.maxFlows = DefaultMaxFlows
	}
	if options.burstThreshold == 0 {
		options.burstThreshold = DefaultBurstThreshold
	}
	if options.logger == nil {
		options.logger = xlogger.Nop()
	}

	return &Observer{
		ring:        NewRing[Observation](options.history),
		processes:   make(map[string]*procEntry),
		flows:       make(map[flow.Key]*flowEntry),
		subscribers: make(map[chan Observation]struct{}),
		options:     options,
	}
}

// Record appends o to the history and updates the aggregate of its process.
func (o *Observer) Record(obs Observation) {
	if obs.Time.IsZero() {
		obs.Time = time.Now()
	}
	bytes := obs.BytesIn + obs.BytesOut

	o.mu.Lock()
	o.ring.Push(obs)
	e := o.entry(obs.Process)
	e.count++
	if obs.Time.After(e.lastSeen) {
		e.lastSeen = obs.Time
	}
	o.mu.Unlock()

	if obs.Action == rule.ActionBlock {
		e.blocked.Add(bytes)
	} else {
		e.allowed.Add(bytes)
	}
	if bytes >= o.options.burstThreshold && !e.bursty.Swap(true) {
		o.options.logger.Infof("%s is bursty: %d bytes in one observation", obs.Process, bytes)
	}

	o.publish(obs)
}

// entry must be called with mu held.
func (o *Observer) entry(p process.Identity) *procEntry {
	id := p.ID()
	e := o.processes[id]
	if e == nil {
		e = &procEntry{}
		o.processes[id] = e
	}
	e.process = p
	return e
}

// Track attributes the bytes of flow key to process p.
func (o *Observer) Track(key flow.Key, p process.Identity) {
	e := o.own(key, p, false)
	e.tracked.Add(1)
}

// Block counts a blocked flow of process p. The flow is charged with the
// average size of the allowed flows of p, and bytes seen on it later count as blocked.
// It returns the charged estimate.
func (o *Observer) Block(key flow.Key, p process.Identity) uint64 {
	e := o.own(key, p, true)
	est := e.estimate()
	e.blockedFlows.Add(1)
	e.blocked.Add(est)
	o.RecordBlocked(est)
	return est
}

func (o *Observer) own(key flow.Key, p process.Identity, blocked bool) *procEntry {
	o.mu.Lock()
	e := o.entry(p)
	o.mu.Unlock()

	o.flowMu.Lock()
	defer o.flowMu.Unlock()

	f := o.flows[key]
	if f == nil {
		f = o.newFlow(key)
	}
	f.owner.Store(&flowOwner{id: p.ID(), entry: e, blocked: blocked})
	return e
}

// newFlow must be called with flowMu held.
func (o *Observer) newFlow(key flow.Key) *flowEntry {
	if len(o.flows) >= o.options.maxFlows {
		for k := range o.flows {
			delete(o.flows, k)
			break
		}
	}
	f := &flowEntry{}
	o.flows[key] = f
	return f
}

// RecordBytes accounts n bytes seen on flow key. Existing flows are
// updated without allocating.
func (o *Observer) RecordBytes(dir flow.Direction, n uint64, key flow.Key) {
	if n == 0 {
		return
	}

	o.flowMu.RLock()
	f := o.flows[key]
	o.flowMu.RUnlock()

	if f == nil {
		o.flowMu.Lock()
		if f = o.flows[key]; f == nil {
			f = o.newFlow(key)
		}
		o.flowMu.Unlock()
	}

	var total uint64
	if dir == flow.Inbound {
		total = f.in.Add(n) + f.out.Load()
	} else {
		total = f.out.Add(n) + f.in.Load()
	}
	owner := f.owner.Load()
	if owner != nil && owner.blocked {
		owner.entry.blocked.Add(n)
		o.counters.Add(KindBlockedBytes, n)
		return
	}
	if owner != nil {
		owner.entry.allowed.Add(n)
		if total >= o.options.burstThreshold {
			owner.entry.bursty.Store(true)
		}
	}
	o.counters.Add(KindAllowedBytes, n)
}

// RecordBlocked counts a blocked flow of the given estimated size.
func (o *Observer) RecordBlocked(bytes uint64) {
	o.counters.Add(KindBlockedFlows, 1)
	if bytes > 0 {
		o.counters.Add(KindBlockedBytes, bytes)
	}
}

func (o *Observer) RecordAllowed() {
	o.counters.Add(KindAllowedFlows, 1)
}

// ForgetFlow drops the byte counters of a closed flow.
func (o *Observer) ForgetFlow(key flow.Key) {
	o.flowMu.Lock()
	delete(o.flows, key)
	o.flowMu.Unlock()
}

// Flow returns the byte counters of flow key.
func (o *Observer) Flow(key flow.Key) (FlowStats, bool) {
	o.flowMu.RLock()
	defer o.flowMu.RUnlock()

	f := o.flows[key]
	if f == nil {
		return FlowStats{}, false
	}
	return flowStats(key, f), true
}

func (o *Observer) Flows() []FlowStats {
	o.flowMu.RLock()
	defer o.flowMu.RUnlock()

	flows := make([]FlowStats, 0, len(o.flows))
	for k, f := range o.flows {
		flows = append(flows, flowStats(k, f))
	}
	slices.SortFunc(flows, func(a, b FlowStats) int {
		return cmp.Compare(b.BytesIn+b.BytesOut, a.BytesIn+a.BytesOut)
	})
	return flows
}

func flowStats(k flow.Key, f *flowEntry) FlowStats {
	fs := FlowStats{
		Key:      k,
		BytesIn:  f.in.Load(),
		BytesOut: f.out.Load(),
	}
	if owner := f.owner.Load(); owner != nil {
		fs.Process = owner.id
		fs.Blocked = owner.blocked
	}
	return fs
}

func (o *Observer) Totals() Totals {
	return o.counters.Totals()
}

// IsUpdated reports whether the global counters changed since the last call.
func (o *Observer) IsUpdated() bool {
	return o.counters.IsUpdated()
}

// Recent returns up to limit observations, newest first.
// A limit <= 0 returns the whole history.
func (o *Observer) Recent(limit int) []Observation {
	o.mu.Lock()
	items := o.ring.Items()
	o.mu.Unlock()

	slices.Reverse(items)
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ForProcess returns the buffered observations of the process with the given id, oldest first.
func (o *Observer) ForProcess(id string) []Observation {
	o.mu.Lock()
	items := o.ring.Items()
	o.mu.Unlock()

	var out []Observation
	for _, obs := range items {
		if obs.Process.ID() == id {
			out = append(out, obs)
		}
	}
	return out
}

// Process returns the aggregate of the process with the given id.
func (o *Observer) Process(id string) (ProcessStats, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e := o.processes[id]
	if e == nil {
		return ProcessStats{}, false
	}
	return e.stats(), true
}

func (o *Observer) processStats() []ProcessStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := make([]ProcessStats, 0, len(o.processes))
	for _, e := range o.processes {
		stats = append(stats, e.stats())
	}
	return stats
}

// Statistics is the aggregate report of the observer.
type Statistics struct {
	Totals       Totals         `json:"totals"`
	TopBlocked   []ProcessStats `json:"topBlocked"`
	TopAllowed   []ProcessStats `json:"topAllowed"`
	Processes    int            `json:"processes"`
	Observations int            `json:"observations"`
	Flows        int            `json:"flows"`
}

// Statistics ranks the processes by blocked and by allowed bytes.
// Blocked processes with equal bytes rank by their blocked flows.
func (o *Observer) Statistics() Statistics {
	stats := o.processStats()

	o.mu.Lock()
	observations := o.ring.Len()
	o.mu.Unlock()

	o.flowMu.RLock()
	flows := len(o.flows)
	o.flowMu.RUnlock()

	return Statistics{
		Totals:       o.counters.Totals(),
		TopBlocked:   top(stats, func(s ProcessStats) uint64 { return s.BytesBlocked }, func(s ProcessStats) uint64 { return s.BlockedFlows }),
		TopAllowed:   top(stats, func(s ProcessStats) uint64 { return s.BytesAllowed }, nil),
		Processes:    len(stats),
		Observations: observations,
		Flows:        flows,
	}
}

func top(stats []ProcessStats, bytes, flows func(ProcessStats) uint64) []ProcessStats {
	ranked := make([]ProcessStats, 0, len(stats))
	for _, s := range stats {
		if bytes(s) > 0 || (flows != nil && flows(s) > 0) {
			ranked = append(ranked, s)
		}
	}
	slices.SortFunc(ranked, func(a, b ProcessStats) int {
		if c := cmp.Compare(bytes(b), bytes(a)); c != 0 {
			return c
		}
		if flows != nil {
			if c := cmp.Compare(flows(b), flows(a)); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Process.ID(), b.Process.ID())
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	return ranked
}

// Snapshot is a copy of the observer state for reporting.
type Snapshot struct {
	Time         time.Time      `json:"time"`
	Totals       Totals         `json:"totals"`
	Processes    []ProcessStats `json:"processes"`
	Observations []Observation  `json:"observations"`
}

func (o *Observer) Snapshot() Snapshot {
	stats := o.processStats()
	slices.SortFunc(stats, func(a, b ProcessStats) int {
		return cmp.Compare(a.Process.ID(), b.Process.ID())
	})

	o.mu.Lock()
	items := o.ring.Items()
	o.mu.Unlock()

	return Snapshot{
		Time:         time.Now(),
		Totals:       o.counters.Totals(),
		Processes:    stats,
		Observations: items,
	}
}

// Clear resets the history, the flow counters, the process aggregates and the global counters.
func (o *Observer) Clear() {
	o.mu.Lock()
	o.ring.Reset()
	o.processes = make(map[string]*procEntry)
	o.mu.Unlock()

	o.flowMu.Lock()
	o.flows = make(map[flow.Key]*flowEntry)
	o.flowMu.Unlock()

	o.counters.Reset()
}

// Subscribe returns a channel receiving every recorded observation.
// Slow subscribers miss observations instead of blocking Record.
func (o *Observer) Subscribe() (<-chan Observation, func()) {
	ch := make(chan Observation, subscriberBuffer)

	o.subMu.Lock()
	o.subscribers[ch] = struct{}{}
	o.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.subMu.Lock()
			delete(o.subscribers, ch)
			o.subMu.Unlock()
			close(ch)
		})
	}
}

func (o *Observer) publish(obs Observation) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	for ch := range o.subscribers {
		select {
		case ch <- obs:
		default:
		}
	}
}
