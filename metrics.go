package docdb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes database statistics as Prometheus collectors. A nil
// *Metrics records nothing.
type Metrics struct {
	Searches       *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	Writes         *prometheus.CounterVec
	WriteDuration  *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by collection and the strategy that produced the results.",
		}, []string{"collection", "path"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"collection"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Committed record writes by collection and operation.",
		}, []string{"collection", "op"}),
		WriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Record write latency, including index maintenance.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"collection"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Record cache lookups by collection and result.",
		}, []string{"collection", "result"}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Searches, m.SearchDuration, m.Writes, m.WriteDuration, m.CacheLookups}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) searched(collection, path string, d time.Duration) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(collection, path).Inc()
	m.SearchDuration.WithLabelValues(collection).Observe(d.Seconds())
}

func (m *Metrics) wrote(collection string, op Op, d time.Duration) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(collection, op.String()).Inc()
	m.WriteDuration.WithLabelValues(collection).Observe(d.Seconds())
}

func (m *Metrics) cacheLookup(collection string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(collection, result).Inc()
}
