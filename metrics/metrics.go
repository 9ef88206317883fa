package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/go-gost/core/metrics"
)

const (
	// Total decisions. Labels: host, action, source.
	MetricDecisionsCounter metrics.MetricName = "warden_decisions_total"
	// Decision latency histogram. Labels: host.
	MetricDecisionDurationObserver metrics.MetricName = "warden_decision_duration_seconds"
	// Decisions exceeding the latency budget. Labels: host.
	MetricBudgetViolationsCounter metrics.MetricName = "warden_budget_violations_total"
	// Cache lookups. Labels: host, cache, result.
	MetricCacheRequestsCounter metrics.MetricName = "warden_cache_requests_total"
	// Observed flow bytes. Labels: host, direction.
	MetricObservedBytesCounter metrics.MetricName = "warden_observed_bytes_total"
	// Whether the current network is trusted (0/1). Labels: host.
	MetricNetworkTrustedGauge metrics.MetricName = "warden_network_trusted"
	// Number of loaded rules. Labels: host, source.
	MetricRulesGauge metrics.MetricName = "warden_rules"
	// Exported report batches. Labels: host, sink, result.
	MetricReportsCounter metrics.MetricName = "warden_reports_total"
)

var (
	defaultMetrics metrics.Metrics
	initOnce       sync.Once
	enabled        atomic.Bool
)

// Enable turns on the prometheus backed metrics.
// Collectors are registered on first enable.
func Enable(b bool) {
	if b {
		initOnce.Do(func() {
			defaultMetrics = NewMetrics()
		})
	}
	enabled.Store(b)
}

func IsEnabled() bool {
	return enabled.Load()
}

func GetCounter(name metrics.MetricName, labels metrics.Labels) metrics.Counter {
	if IsEnabled() {
		if c := defaultMetrics.Counter(name, labels); c != nil {
			return c
		}
	}
	return noop.Counter(name, labels)
}

func GetGauge(name metrics.MetricName, labels metrics.Labels) metrics.Gauge {
	if IsEnabled() {
		if g := defaultMetrics.Gauge(name, labels); g != nil {
			return g
		}
	}
	return noop.Gauge(name, labels)
}

func GetObserver(name metrics.MetricName, labels metrics.Labels) metrics.Observer {
	if IsEnabled() {
		if o := defaultMetrics.Observer(name, labels); o != nil {
			return o
		}
	}
	return noop.Observer(name, labels)
}
