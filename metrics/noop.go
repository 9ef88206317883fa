package metrics

import "github.com/go-gost/core/metrics"

// nopMetric satisfies the gauge, counter and observer interfaces at once.
type nopMetric struct{}

func (nopMetric) Inc()              {}
func (nopMetric) Dec()              {}
func (nopMetric) Add(v float64)     {}
func (nopMetric) Set(v float64)     {}
func (nopMetric) Observe(v float64) {}

var (
	nop  = nopMetric{}
	noop metrics.Metrics = noopMetrics{}
)

type noopMetrics struct{}

// Noop returns a Metrics that records nothing.
func Noop() metrics.Metrics {
	return noop
}

func (noopMetrics) Counter(metrics.MetricName, metrics.Labels) metrics.Counter   { return nop }
func (noopMetrics) Gauge(metrics.MetricName, metrics.Labels) metrics.Gauge       { return nop }
func (noopMetrics) Observer(metrics.MetricName, metrics.Labels) metrics.Observer { return nop }
