package trust

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gost/core/logger"
	"github.com/go-gost/core/metrics"
	xlogger "github.com/netwarden/warden/logger"
	xmetrics "github.com/netwarden/warden/metrics"
	"github.com/netwarden/warden/network"
)

// Detector observes the network the host is attached to.
type Detector interface {
	Detect(ctx context.Context) (*network.Network, error)
}

type options struct {
	detector Detector
	logger   logger.Logger
}

type Option func(opts *options)

func DetectorOption(d Detector) Option {
	return func(opts *options) {
		opts.detector = d
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Engine holds the current network and the trusted network configs.
// Writers recompute the trust state and publish it, readers load it without locking.
type Engine struct {
	mu        sync.Mutex
	network   *network.Network
	configs   []compiledConfig
	listeners []func(State)

	state   atomic.Pointer[State]
	options options
}

func NewEngine(opts ...Option) *Engine {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = xlogger.Nop()
	}

	e := &Engine{options: options}
	st := evaluate(nil, nil)
	st.Since = time.Now()
	e.state.Store(&st)
	return e
}

// State returns the last published trust state.
func (e *Engine) State() *State {
	return e.state.Load()
}

func (e *Engine) IsTrusted() bool {
	return e.state.Load().Trusted
}

// Evaluate computes the trust state of n against the loaded configs without publishing it.
func (e *Engine) Evaluate(n *network.Network) State {
	e.mu.Lock()
	configs := e.configs
	e.mu.Unlock()

	return evaluate(configs, n)
}

// SetNetworks replaces the trusted network configs and recomputes the state.
// On error the previous configs stay in effect.
func (e *Engine) SetNetworks(cfgs []NetworkConfig) error {
	compiled, err := compile(cfgs)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.configs = compiled
	st, changed := e.publish()
	e.mu.Unlock()

	e.options.logger.Debugf("loaded %d networks", len(compiled))
	if changed {
		e.notify(st)
	}
	return nil
}

// Networks returns the loaded configs in evaluation order.
func (e *Engine) Networks() []NetworkConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfgs := make([]NetworkConfig, 0, len(e.configs))
	for _, c := range e.configs {
		cfgs = append(cfgs, c.NetworkConfig)
	}
	return cfgs
}

// UpdateNetwork replaces the current network snapshot and recomputes the state.
func (e *Engine) UpdateNetwork(n *network.Network) State {
	n = n.Clone()

	e.mu.Lock()
	e.network = n
	st, changed := e.publish()
	e.mu.Unlock()

	if changed {
		e.options.logger.Infof("network %s: trusted=%t (%s)", n.Label(), st.Trusted, st.Reason)
		e.notify(st)
	}
	return st
}

// Network returns the current network snapshot, nil when detached.
func (e *Engine) Network() *network.Network {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.network
}

// Reevaluate asks the detector for a fresh snapshot and applies it.
func (e *Engine) Reevaluate(ctx context.Context) (State, error) {
	if e.options.detector == nil {
		return *e.State(), ErrNoDetector
	}
	n, err := e.options.detector.Detect(ctx)
	if err != nil {
		return *e.State(), err
	}
	if err := ctx.Err(); err != nil {
		return *e.State(), err
	}
	return e.UpdateNetwork(n), nil
}

// OnChange registers fn to be called after every change of the trust state.
func (e *Engine) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// publish must be called with mu held.
func (e *Engine) publish() (State, bool) {
	st := evaluate(e.configs, e.network)
	prev := e.state.Load()
	changed := !sameState(prev, &st)
	if changed {
		st.Since = time.Now()
	} else {
		st.Since = prev.Since
	}
	e.state.Store(&st)

	v := 0.0
	if st.Trusted {
		v = 1
	}
	xmetrics.GetGauge(xmetrics.MetricNetworkTrustedGauge, metrics.Labels{}).Set(v)
	return st, changed
}

func (e *Engine) notify(st State) {
	e.mu.Lock()
	listeners := slices.Clone(e.listeners)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func sameState(a, b *State) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Trusted == b.Trusted &&
		a.Level == b.Level &&
		a.Reason == b.Reason &&
		a.NetworkID == b.NetworkID &&
		a.overrides == b.overrides &&
		sameNetwork(a.Network, b.Network)
}

func sameNetwork(a, b *network.Network) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name &&
		a.HardwareAddr == b.HardwareAddr &&
		a.Interface == b.Interface &&
		a.Kind == b.Kind &&
		a.Gateway == b.Gateway &&
		a.Overlay == b.Overlay &&
		a.OverlayName == b.OverlayName &&
		slices.Equal(a.Addrs, b.Addrs)
}
