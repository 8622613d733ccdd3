package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the export service
type Metrics struct {
	conversions     *prometheus.CounterVec
	skippedObjects  *prometheus.CounterVec
	conversionTime  prometheus.Histogram
	outputSize      prometheus.Histogram
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	exportsInFlight prometheus.Gauge
	cacheSize       *prometheus.GaugeVec
	cacheExports    *prometheus.GaugeVec
}

// NewMetrics creates all export metrics and registers them on reg.
// A nil reg falls back to the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gltf_conversions_total",
				Help: "Total number of conversions by outcome",
			},
			[]string{"status", "format"},
		),
		skippedObjects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gltf_skipped_objects_total",
				Help: "Objects skipped during scene assembly by geometry kind",
			},
			[]string{"kind"},
		),
		conversionTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gltf_conversion_latency_ms",
				Help:    "Latency of document to glTF conversions in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),
		outputSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gltf_output_size_bytes",
				Help:    "Size of encoded glTF outputs in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_cache_hits_total",
				Help: "Total number of export cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_cache_misses_total",
				Help: "Total number of export cache misses per layer",
			},
			[]string{"layer"},
		),
		cacheLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "export_cache_retrieval_latency_ms",
				Help:    "Latency of cache retrievals in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"layer"},
		),
		exportsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gltf_conversions_in_flight",
				Help: "Number of conversions currently running",
			},
		),
		cacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "export_cache_size_bytes",
				Help: "Bytes held per cache layer",
			},
			[]string{"layer"},
		),
		cacheExports: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "export_cache_exports",
				Help: "Number of exports held per cache layer",
			},
			[]string{"layer"},
		),
	}
}

// RecordConversion records the outcome of one conversion
func (m *Metrics) RecordConversion(status, format string, latencyMs float64, outputBytes int) {
	m.conversions.WithLabelValues(status, format).Inc()
	m.conversionTime.Observe(latencyMs)
	if outputBytes > 0 {
		m.outputSize.Observe(float64(outputBytes))
	}
}

// RecordSkipped increments the skipped object counter for a geometry kind
func (m *Metrics) RecordSkipped(kind string) {
	m.skippedObjects.WithLabelValues(kind).Inc()
}

// IncrementCacheHits increments the cache hits counter
func (m *Metrics) IncrementCacheHits(layer string) {
	m.cacheHits.WithLabelValues(layer).Inc()
}

// IncrementCacheMisses increments the cache misses counter
func (m *Metrics) IncrementCacheMisses(layer string) {
	m.cacheMisses.WithLabelValues(layer).Inc()
}

// RecordCacheLatency records the latency of a cache retrieval
func (m *Metrics) RecordCacheLatency(layer string, milliseconds float64) {
	m.cacheLatency.WithLabelValues(layer).Observe(milliseconds)
}

// ConversionStarted marks a conversion in flight; call the returned func when done
func (m *Metrics) ConversionStarted() func() {
	m.exportsInFlight.Inc()
	return m.exportsInFlight.Dec
}

// SetCacheLayerSize records the current size and export count of a cache layer
func (m *Metrics) SetCacheLayerSize(layer string, bytes int64, exports int) {
	m.cacheSize.WithLabelValues(layer).Set(float64(bytes))
	m.cacheExports.WithLabelValues(layer).Set(float64(exports))
}
