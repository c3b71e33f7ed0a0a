package configsource

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters shared by every source created with
// it. Series are labelled by cache id.
type Metrics struct {
	hits             *prometheus.CounterVec
	misses           *prometheus.CounterVec
	absentHits       *prometheus.CounterVec
	storeFetches     *prometheus.CounterVec
	invalidations    *prometheus.CounterVec
	resolutionErrors *prometheus.CounterVec
	conversionErrors *prometheus.CounterVec

	registry *prometheus.Registry
}

func newCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "document_config",
			Name:      name,
			Help:      help,
		},
		[]string{"cache_id"},
	)
}

// NewMetrics creates the counters and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		hits:             newCounterVec("hits_total", "Lookups answered with a cached value"),
		misses:           newCounterVec("misses_total", "Lookups with nothing cached"),
		absentHits:       newCounterVec("absent_hits_total", "Lookups answered with a cached absence"),
		storeFetches:     newCounterVec("store_fetches_total", "Reads of the configuration object from the document store"),
		invalidations:    newCounterVec("invalidations_total", "Cache clears triggered by document events"),
		resolutionErrors: newCounterVec("resolution_errors_total", "Failures resolving document or class references, or reading the store"),
		conversionErrors: newCounterVec("conversion_errors_total", "Values that could not be converted to the requested type"),
		registry:         prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.hits,
		m.misses,
		m.absentHits,
		m.storeFetches,
		m.invalidations,
		m.resolutionErrors,
		m.conversionErrors,
	)

	return m
}

// Registry returns the registry the counters live on, for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Stats is a point in time copy of a source's counters.
type Stats struct {
	Hits             uint64
	Misses           uint64
	AbsentHits       uint64
	StoreFetches     uint64
	Invalidations    uint64
	ResolutionErrors uint64
	ConversionErrors uint64
}

type counter struct {
	n    atomic.Uint64
	prom prometheus.Counter
}

func (c *counter) inc() {
	c.n.Add(1)
	if c.prom != nil {
		c.prom.Inc()
	}
}

type sourceCounters struct {
	hits             counter
	misses           counter
	absentHits       counter
	storeFetches     counter
	invalidations    counter
	resolutionErrors counter
	conversionErrors counter
}

func newSourceCounters(m *Metrics, cacheID string) *sourceCounters {
	c := &sourceCounters{}
	if m == nil {
		return c
	}
	c.hits.prom = m.hits.WithLabelValues(cacheID)
	c.misses.prom = m.misses.WithLabelValues(cacheID)
	c.absentHits.prom = m.absentHits.WithLabelValues(cacheID)
	c.storeFetches.prom = m.storeFetches.WithLabelValues(cacheID)
	c.invalidations.prom = m.invalidations.WithLabelValues(cacheID)
	c.resolutionErrors.prom = m.resolutionErrors.WithLabelValues(cacheID)
	c.conversionErrors.prom = m.conversionErrors.WithLabelValues(cacheID)
	return c
}

func (c *sourceCounters) snapshot() Stats {
	return Stats{
		Hits:             c.hits.n.Load(),
		Misses:           c.misses.n.Load(),
		AbsentHits:       c.absentHits.n.Load(),
		StoreFetches:     c.storeFetches.n.Load(),
		Invalidations:    c.invalidations.n.Load(),
		ResolutionErrors: c.resolutionErrors.n.Load(),
		ConversionErrors: c.conversionErrors.n.Load(),
	}
}
