// Package metrics holds the cortex Prometheus collectors.
//
// Collectors are package globals so decorators deep in the stack can record
// without plumbing. The composition root registers them with the default
// registry through the Register functions, which may be called repeatedly.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cortex"

// collectorSet registers its collectors at most once.
type collectorSet struct {
	once       sync.Once
	collectors []prometheus.Collector
}

func newSet(cs ...prometheus.Collector) *collectorSet {
	return &collectorSet{collectors: cs}
}

func (s *collectorSet) register() {
	s.once.Do(func() { prometheus.MustRegister(s.collectors...) })
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogram(name, help string, buckets []float64) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	})
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
}
