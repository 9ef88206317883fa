package metrics

import (
	"os"

	"github.com/go-gost/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type promMetrics struct {
	host       string
	gauges     map[metrics.MetricName]*prometheus.GaugeVec
	counters   map[metrics.MetricName]*prometheus.CounterVec
	histograms map[metrics.MetricName]*prometheus.HistogramVec
}

func NewMetrics() metrics.Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

func newMetrics(reg prometheus.Registerer) *promMetrics {
	host, _ := os.Hostname()
	m := &promMetrics{
		host: host,
		gauges: map[metrics.MetricName]*prometheus.GaugeVec{
			MetricNetworkTrustedGauge: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: string(MetricNetworkTrustedGauge),
					Help: "Whether the current network is trusted",
				},
				[]string{"host"}),
			MetricRulesGauge: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: string(MetricRulesGauge),
					Help: "Number of loaded process rules",
				},
				[]string{"host", "source"}),
		},
		counters: map[metrics.MetricName]*prometheus.CounterVec{
			MetricDecisionsCounter: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: string(MetricDecisionsCounter),
					Help: "Total number of flow decisions",
				},
				[]string{"host", "action", "source"}),
			MetricBudgetViolationsCounter: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: string(MetricBudgetViolationsCounter),
					Help: "Total decisions exceeding the latency budget",
				},
				[]string{"host"}),
			MetricCacheRequestsCounter: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: string(MetricCacheRequestsCounter),
					Help: "Total cache lookups",
				},
				[]string{"host", "cache", "result"}),
			MetricObservedBytesCounter: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: string(MetricObservedBytesCounter),
					Help: "Total observed flow bytes",
				},
				[]string{"host", "direction"}),
			MetricReportsCounter: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: string(MetricReportsCounter),
					Help: "Total exported report batches",
				},
				[]string{"host", "sink", "result"}),
		},
		histograms: map[metrics.MetricName]*prometheus.HistogramVec{
			MetricDecisionDurationObserver: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name: string(MetricDecisionDurationObserver),
					Help: "Distribution of flow decision latencies",
					Buckets: []float64{
						.00001, .00005, .0001, .00025, .0005, .001, .0025, .005, .01,
					},
				},
				[]string{"host"}),
		},
	}
	for k := range m.gauges {
		reg.MustRegister(m.gauges[k])
	}
	for k := range m.counters {
		reg.MustRegister(m.counters[k])
	}
	for k := range m.histograms {
		reg.MustRegister(m.histograms[k])
	}

	return m
}

func (m *promMetrics) labels(labels metrics.Labels) prometheus.Labels {
	l := prometheus.Labels{"host": m.host}
	for k, v := range labels {
		l[k] = v
	}
	return l
}

func (m *promMetrics) Gauge(name metrics.MetricName, labels metrics.Labels) metrics.Gauge {
	v, ok := m.gauges[name]
	if !ok {
		return nil
	}
	return v.With(m.labels(labels))
}

func (m *promMetrics) Counter(name metrics.MetricName, labels metrics.Labels) metrics.Counter {
	v, ok := m.counters[name]
	if !ok {
		return nil
	}
	return v.With(m.labels(labels))
}

func (m *promMetrics) Observer(name metrics.MetricName, labels metrics.Labels) metrics.Observer {
	v, ok := m.histograms[name]
	if !ok {
		return nil
	}
	return v.With(m.labels(labels))
}
