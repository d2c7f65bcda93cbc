package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "zion"

// PrometheusMetrics exports metrics through a Prometheus registry. Collectors
// are created and registered the first time a name is observed.
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	gauges     map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusMetrics creates a backend with its own registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PrometheusMetrics{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		gauges:     make(map[string]prometheus.Gauge),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry returns the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *PrometheusMetrics) Initialize(ctx context.Context) error { return nil }
func (p *PrometheusMetrics) Flush(ctx context.Context) error      { return nil }
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error   { return nil }

// UpdateGauge sets a gauge.
func (p *PrometheusMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: p.namespace, Name: name, Help: name})
		if err := p.registry.Register(g); err != nil {
			return err
		}
		p.gauges[name] = g
	}
	g.Set(value)
	return nil
}

// IncrementCounter adds value to a counter.
func (p *PrometheusMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{Namespace: p.namespace, Name: name + "_total", Help: name})
		if err := p.registry.Register(c); err != nil {
			return err
		}
		p.counters[name] = c
	}
	c.Add(float64(value))
	return nil
}

// RecordHistogram observes a value.
func (p *PrometheusMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		})
		if err := p.registry.Register(h); err != nil {
			return err
		}
		p.histograms[name] = h
	}
	h.Observe(value)
	return nil
}
