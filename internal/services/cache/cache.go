// Package cache defines the layer contract shared by the export output caches.
package cache

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when a layer does not hold the export.
var ErrNotFound = errors.New("export not found in cache")

// CacheLayer stores encoded export outputs keyed by export ID.
type CacheLayer interface {
	Name() string
	Store(exportID uuid.UUID, data []byte) error
	Get(exportID uuid.UUID) ([]byte, error)
	Exists(exportID uuid.UUID) (bool, error)
	Delete(exportID uuid.UUID) error
	Clear() error
	GetStats() LayerStats
}

type LayerStats struct {
	Name      string  `json:"name"`
	Exports   int     `json:"exports"`
	SizeBytes int64   `json:"sizeBytes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
}

// HitRate returns hits as a percentage of all lookups.
func HitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
