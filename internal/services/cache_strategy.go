package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gltf-export-service/internal/config"
	"gltf-export-service/internal/metrics"
	"gltf-export-service/internal/services/cache"
	"gltf-export-service/internal/services/caches"
	"gltf-export-service/internal/storage"
)

const (
	SmallFileThreshold  = 8 << 20   // 8MB - In-Memory Cache
	MediumFileThreshold = 32 << 20  // 32MB - File System Cache
	LargeFileThreshold  = 100 << 20 // 100MB - Redis Cache
)

// CacheStrategy places export outputs in a cache layer chosen by size and
// looks them up across all layers
type CacheStrategy struct {
	memoryCache *caches.MemoryCache
	fileCache   *caches.FileSystemCache
	redisCache  *caches.RedisCache // nil without Redis
	metrics     *metrics.Metrics
	log         *zap.Logger
}

type MultiLayerCacheStats struct {
	Memory     cache.LayerStats  `json:"memory"`
	FileSystem cache.LayerStats  `json:"fileSystem"`
	Redis      *cache.LayerStats `json:"redis,omitempty"`
	Strategy   StrategyStats     `json:"strategy"`
}

type StrategyStats struct {
	SmallFileThreshold  int64 `json:"smallFileThreshold"`
	MediumFileThreshold int64 `json:"mediumFileThreshold"`
	LargeFileThreshold  int64 `json:"largeFileThreshold"`
}

// NewCacheStrategy builds the memory and file layers from cfg. redis may be
// nil, in which case exports above MediumFileThreshold are not cached.
func NewCacheStrategy(cfg config.CacheConfig, redis *storage.RedisClient, m *metrics.Metrics, log *zap.Logger) (*CacheStrategy, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fileCache, err := caches.NewFileSystemCache(cfg.FileDir, cfg.FileMaxBytes, cfg.TTL, log)
	if err != nil {
		return nil, err
	}
	cs := &CacheStrategy{
		memoryCache: caches.NewMemoryCache(cfg.MemoryMaxBytes, cfg.TTL, log),
		fileCache:   fileCache,
		metrics:     m,
		log:         log,
	}
	if redis != nil {
		cs.redisCache = caches.NewRedisCache(redis, cfg.TTL, log)
	}
	return cs, nil
}

func (cs *CacheStrategy) layers() []cache.CacheLayer {
	layers := []cache.CacheLayer{cs.memoryCache, cs.fileCache}
	if cs.redisCache != nil {
		layers = append(layers, cs.redisCache)
	}
	return layers
}

// GetOptimalCache determines which cache layer to use based on export size.
// It returns nil when the export should be served from object storage only.
func (cs *CacheStrategy) GetOptimalCache(size int64) cache.CacheLayer {
	switch {
	case size <= SmallFileThreshold:
		return cs.memoryCache
	case size <= MediumFileThreshold:
		return cs.fileCache
	case size <= LargeFileThreshold && cs.redisCache != nil:
		return cs.redisCache
	default:
		return nil
	}
}

// Store caches data in the layer chosen for its size and returns that layer's
// name, or "" when the export is not cached
func (cs *CacheStrategy) Store(exportID uuid.UUID, data []byte) (string, error) {
	layer := cs.GetOptimalCache(int64(len(data)))
	if layer == nil {
		cs.log.Debug("export too large for caching",
			zap.Stringer("export_id", exportID), zap.Int("bytes", len(data)))
		return "", nil
	}
	if err := layer.Store(exportID, data); err != nil {
		return "", errors.Wrapf(err, "failed to store in %s cache", layer.Name())
	}
	return layer.Name(), nil
}

// Lookup tries every layer from fastest to slowest. Each attempt is recorded
// on timings when it is not nil. Small exports found in a slower layer are
// promoted to memory.
func (cs *CacheStrategy) Lookup(exportID uuid.UUID, timings *metrics.ConversionTimings) ([]byte, string, bool) {
	for _, layer := range cs.layers() {
		var attempt *metrics.LayerMetrics
		if timings != nil {
			attempt = timings.StartCacheLayerAttempt(layer.Name())
		}
		start := time.Now()
		data, err := layer.Get(exportID)
		hit := err == nil

		if timings != nil {
			var reported error
			if err != nil && !errors.Is(err, cache.ErrNotFound) {
				reported = err
			}
			timings.EndCacheLayerAttempt(attempt, hit, reported)
		}
		cs.record(layer.Name(), hit, time.Since(start))

		if err != nil && !errors.Is(err, cache.ErrNotFound) {
			cs.log.Warn("cache layer lookup failed",
				zap.String("layer", layer.Name()), zap.Stringer("export_id", exportID), zap.Error(err))
		}
		if !hit {
			continue
		}

		if layer != cache.CacheLayer(cs.memoryCache) && int64(len(data)) <= SmallFileThreshold {
			if err := cs.memoryCache.Store(exportID, data); err != nil {
				cs.log.Debug("promotion to memory failed", zap.Stringer("export_id", exportID), zap.Error(err))
			}
		}
		return data, layer.Name(), true
	}
	return nil, "", false
}

func (cs *CacheStrategy) record(layer string, hit bool, d time.Duration) {
	if cs.metrics == nil {
		return
	}
	if hit {
		cs.metrics.IncrementCacheHits(layer)
	} else {
		cs.metrics.IncrementCacheMisses(layer)
	}
	cs.metrics.RecordCacheLatency(layer, float64(d.Microseconds())/1000)
}

// InvalidateObject removes an export from all cache layers
func (cs *CacheStrategy) InvalidateObject(exportID uuid.UUID) error {
	var errs []error
	for _, layer := range cs.layers() {
		if err := layer.Delete(exportID); err != nil {
			errs = append(errs, fmt.Errorf("%s cache: %w", layer.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalidation errors: %v", errs)
	}
	return nil
}

// GetStatistics returns per-layer cache statistics
func (cs *CacheStrategy) GetStatistics() *MultiLayerCacheStats {
	stats := &MultiLayerCacheStats{
		Memory:     cs.memoryCache.GetStats(),
		FileSystem: cs.fileCache.GetStats(),
		Strategy: StrategyStats{
			SmallFileThreshold:  SmallFileThreshold,
			MediumFileThreshold: MediumFileThreshold,
			LargeFileThreshold:  LargeFileThreshold,
		},
	}
	if cs.redisCache != nil {
		redisStats := cs.redisCache.GetStats()
		stats.Redis = &redisStats
	}
	if cs.metrics != nil {
		cs.metrics.SetCacheLayerSize(cs.memoryCache.Name(), stats.Memory.SizeBytes, stats.Memory.Exports)
		cs.metrics.SetCacheLayerSize(cs.fileCache.Name(), stats.FileSystem.SizeBytes, stats.FileSystem.Exports)
		if stats.Redis != nil {
			cs.metrics.SetCacheLayerSize(cs.redisCache.Name(), stats.Redis.SizeBytes, stats.Redis.Exports)
		}
	}
	return stats
}

// ClearAll clears all cache layers
func (cs *CacheStrategy) ClearAll() error {
	var errs []error
	for _, layer := range cs.layers() {
		if err := layer.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("clear errors: %v", errs)
	}
	return nil
}

// Close stops the expiry loops of the local layers
func (cs *CacheStrategy) Close() {
	cs.memoryCache.Close()
	cs.fileCache.Close()
}
