// Package reporter periodically exports traffic snapshots to external sinks.
package reporter

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/go-gost/core/logger"
	"github.com/go-gost/core/metrics"
	xlogger "github.com/netwarden/warden/logger"
	xmetrics "github.com/netwarden/warden/metrics"
	"github.com/netwarden/warden/observer"
	"github.com/rs/xid"
)

const (
	DefaultInterval = time.Minute
	defaultTimeout  = 10 * time.Second
)

// Batch is one exported snapshot. Observations only holds the
// observations recorded since the previous batch.
type Batch struct {
	ID   string `json:"id"`
	Host string `json:"host,omitempty"`
	observer.Snapshot
}

type Sink interface {
	Name() string
	Send(ctx context.Context, b *Batch) error
	Close() error
}

// Source is implemented by filter.Filter.
type Source interface {
	Snapshot() observer.Snapshot
	IsUpdated() bool
}

type options struct {
	interval time.Duration
	timeout  time.Duration
	sinks    []Sink
	logger   logger.Logger
}

type Option func(opts *options)

func IntervalOption(d time.Duration) Option {
	return func(opts *options) {
		opts.interval = d
	}
}

// TimeoutOption bounds a single export to all sinks.
func TimeoutOption(d time.Duration) Option {
	return func(opts *options) {
		opts.timeout = d
	}
}

func SinksOption(sinks ...Sink) Option {
	return func(opts *options) {
		opts.sinks = append(opts.sinks, sinks...)
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

type Exporter struct {
	source Source
	host   string

	mu   sync.Mutex
	last time.Time

	options options
}

func NewExporter(source Source, opts ...Option) *Exporter {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.interval <= 0 {
		options.interval = DefaultInterval
	}
	if options.timeout <= 0 {
		options.timeout = defaultTimeout
	}
	if options.logger == nil {
		options.logger = xlogger.Nop()
	}

	host, _ := os.Hostname()
	return &Exporter{
		source:  source,
		host:    host,
		options: options,
	}
}

// Run exports a batch every interval until ctx is done.
// Intervals without new traffic are skipped.
func (e *Exporter) Run(ctx context.Context) error {
	if len(e.options.sinks) == 0 {
		return nil
	}

	ticker := time.NewTicker(e.options.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !e.source.IsUpdated() {
				continue
			}
			if _, err := e.Export(ctx); err != nil {
				e.options.logger.Warnf("export: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Export sends the current snapshot to every sink. A failing sink does not
// prevent delivery to the others.
func (e *Exporter) Export(ctx context.Context) (*Batch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := &Batch{
		ID:       xid.New().String(),
		Host:     e.host,
		Snapshot: e.source.Snapshot(),
	}
	b.Observations = since(b.Observations, e.last)
	if n := len(b.Observations); n > 0 {
		e.last = b.Observations[n-1].Time
	}

	ctx, cancel := context.WithTimeout(ctx, e.options.timeout)
	defer cancel()

	var errs []error
	for _, sink := range e.options.sinks {
		result := "ok"
		if err := sink.Send(ctx, b); err != nil {
			result = "error"
			errs = append(errs, err)
		}
		xmetrics.GetCounter(xmetrics.MetricReportsCounter, metrics.Labels{
			"sink":   sink.Name(),
			"result": result,
		}).Inc()
	}
	e.options.logger.Debugf("batch %s: %d processes, %d observations", b.ID, len(b.Processes), len(b.Observations))

	return b, errors.Join(errs...)
}

func (e *Exporter) Close() error {
	var errs []error
	for _, sink := range e.options.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// since drops observations at or before t, obs is ordered oldest first.
func since(obs []observer.Observation, t time.Time) []observer.Observation {
	if t.IsZero() {
		return obs
	}
	for i, o := range obs {
		if o.Time.After(t) {
			return obs[i:]
		}
	}
	return nil
}
