package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ConversionTimings holds per-stage latency measurements for one conversion
// or download request
type ConversionTimings struct {
	mu sync.RWMutex

	startTime time.Time
	running   map[string]time.Time

	TotalLatencyMs float64 `json:"totalLatencyMs"`

	// Stage latencies keyed by stage name (decode, assemble, serialize, ...)
	Stages map[string]float64 `json:"stages"`

	// Cache layer attempts during downloads
	CacheLayers []LayerMetrics `json:"cacheLayers,omitempty"`

	ExportID       string `json:"exportId,omitempty"`
	OutputSize     int64  `json:"outputSize"`
	NodeCount      int    `json:"nodeCount"`
	SkippedCount   int    `json:"skippedCount"`
	CacheHit       bool   `json:"cacheHit"`
	CacheLayerUsed string `json:"cacheLayerUsed,omitempty"`
}

// LayerMetrics represents metrics for a single cache layer attempt
type LayerMetrics struct {
	LayerName string    `json:"layerName"`
	StartTime time.Time `json:"-"`
	LatencyMs float64   `json:"latencyMs"`
	Hit       bool      `json:"hit"`
	Error     string    `json:"error,omitempty"`
}

// NewConversionTimings creates a new collector and starts the total clock
func NewConversionTimings(exportID string) *ConversionTimings {
	return &ConversionTimings{
		startTime: time.Now(),
		running:   make(map[string]time.Time),
		Stages:    make(map[string]float64),
		ExportID:  exportID,
	}
}

// Start marks the start of a stage
func (m *ConversionTimings) Start(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[stage] = time.Now()
}

// End marks the end of a stage. Ending a stage that was never started is a no-op.
func (m *ConversionTimings) End(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	started, ok := m.running[stage]
	if !ok {
		return
	}
	delete(m.running, stage)
	m.Stages[stage] += durationMs(time.Since(started))
}

// Record adds an externally measured duration to a stage
func (m *ConversionTimings) Record(stage string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages[stage] += durationMs(d)
}

// StartCacheLayerAttempt starts timing for a cache layer attempt
func (m *ConversionTimings) StartCacheLayerAttempt(layerName string) *LayerMetrics {
	return &LayerMetrics{LayerName: layerName, StartTime: time.Now()}
}

// EndCacheLayerAttempt ends timing for a cache layer attempt
func (m *ConversionTimings) EndCacheLayerAttempt(layer *LayerMetrics, hit bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if layer.StartTime.IsZero() {
		return
	}
	layer.LatencyMs = durationMs(time.Since(layer.StartTime))
	layer.Hit = hit
	if err != nil {
		layer.Error = err.Error()
	}
	m.CacheLayers = append(m.CacheLayers, *layer)

	if hit {
		m.CacheHit = true
		m.CacheLayerUsed = layer.LayerName
	}
}

// SetResult records the outcome counters of a conversion
func (m *ConversionTimings) SetResult(outputSize int64, nodes, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OutputSize = outputSize
	m.NodeCount = nodes
	m.SkippedCount = skipped
}

// Finalize stops the total clock
func (m *ConversionTimings) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.startTime.IsZero() {
		m.TotalLatencyMs = durationMs(time.Since(m.startTime))
	}
}

// Stage returns the recorded latency of a stage in milliseconds
func (m *ConversionTimings) Stage(stage string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.Stages[stage]
	return v, ok
}

// GetHeaders returns HTTP headers with latency metrics
func (m *ConversionTimings) GetHeaders() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	headers := make(map[string]string)
	headers["X-Latency-Total-Ms"] = formatFloat(m.TotalLatencyMs)

	stages := make([]string, 0, len(m.Stages))
	for stage := range m.Stages {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		headers["X-Latency-"+headerName(stage)+"-Ms"] = formatFloat(m.Stages[stage])
	}

	if len(m.CacheLayers) > 0 {
		headers["X-Cache-Hit"] = formatBool(m.CacheHit)
		if m.CacheHit {
			headers["X-Cache-Layer-Used"] = m.CacheLayerUsed
		}
		for _, layer := range m.CacheLayers {
			headers["X-Latency-Cache-"+headerName(layer.LayerName)+"-Ms"] = formatFloat(layer.LatencyMs)
		}
	}

	if m.OutputSize > 0 {
		headers["X-Output-Size-Bytes"] = fmt.Sprintf("%d", m.OutputSize)
	}
	if m.NodeCount > 0 || m.SkippedCount > 0 {
		headers["X-Export-Nodes"] = fmt.Sprintf("%d", m.NodeCount)
		headers["X-Export-Skipped"] = fmt.Sprintf("%d", m.SkippedCount)
	}

	return headers
}

// Helper functions
func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// headerName turns "db_lookup" into "Db-Lookup".
func headerName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}
