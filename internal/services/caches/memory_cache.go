package caches

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gltf-export-service/internal/services/cache"
)

type MemoryCache struct {
	data        sync.Map // map[uuid.UUID][]byte
	metadata    sync.Map // map[uuid.UUID]*memoryEntry
	mu          sync.Mutex
	maxSize     int64
	currentSize atomic.Int64
	ttl         time.Duration
	log         *zap.Logger
	done        chan struct{}
	closeOnce   sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

type memoryEntry struct {
	size       int64
	createdAt  time.Time
	lastAccess atomic.Int64 // unix nanos
}

// NewMemoryCache starts a cache bounded to maxSizeBytes whose entries expire
// after ttl. Close stops the expiry loop.
func NewMemoryCache(maxSizeBytes int64, ttl time.Duration, log *zap.Logger) *MemoryCache {
	if log == nil {
		log = zap.NewNop()
	}
	mc := &MemoryCache{
		maxSize: maxSizeBytes,
		ttl:     ttl,
		log:     log.With(zap.String("layer", "MEMORY")),
		done:    make(chan struct{}),
	}
	go mc.cleanupLoop(time.Minute)
	return mc
}

func (mc *MemoryCache) Name() string {
	return "MEMORY"
}

func (mc *MemoryCache) Store(exportID uuid.UUID, data []byte) error {
	size := int64(len(data))
	if size > mc.maxSize {
		return fmt.Errorf("export of %d bytes exceeds memory cache size %d", size, mc.maxSize)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.deleteLocked(exportID)
	for mc.currentSize.Load()+size > mc.maxSize {
		if !mc.evictLRU() {
			return fmt.Errorf("unable to free space for export of size %d", size)
		}
	}

	entry := &memoryEntry{size: size, createdAt: time.Now()}
	entry.lastAccess.Store(entry.createdAt.UnixNano())
	mc.data.Store(exportID, data)
	mc.metadata.Store(exportID, entry)
	mc.currentSize.Add(size)

	mc.log.Debug("stored export", zap.Stringer("export_id", exportID), zap.Int64("bytes", size))
	return nil
}

func (mc *MemoryCache) Get(exportID uuid.UUID) ([]byte, error) {
	if value, ok := mc.data.Load(exportID); ok {
		if meta, ok := mc.metadata.Load(exportID); ok {
			meta.(*memoryEntry).lastAccess.Store(time.Now().UnixNano())
		}
		mc.hits.Add(1)
		return value.([]byte), nil
	}
	mc.misses.Add(1)
	return nil, cache.ErrNotFound
}

func (mc *MemoryCache) Exists(exportID uuid.UUID) (bool, error) {
	_, ok := mc.data.Load(exportID)
	return ok, nil
}

func (mc *MemoryCache) Delete(exportID uuid.UUID) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.deleteLocked(exportID)
	return nil
}

func (mc *MemoryCache) deleteLocked(exportID uuid.UUID) {
	if meta, ok := mc.metadata.LoadAndDelete(exportID); ok {
		mc.data.Delete(exportID)
		mc.currentSize.Add(-meta.(*memoryEntry).size)
	}
}

func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.data.Range(func(key, _ interface{}) bool {
		mc.data.Delete(key)
		return true
	})
	mc.metadata.Range(func(key, _ interface{}) bool {
		mc.metadata.Delete(key)
		return true
	})
	mc.currentSize.Store(0)
	mc.hits.Store(0)
	mc.misses.Store(0)

	mc.log.Info("cleared")
	return nil
}

func (mc *MemoryCache) GetStats() cache.LayerStats {
	count := 0
	mc.data.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	hits, misses := mc.hits.Load(), mc.misses.Load()
	return cache.LayerStats{
		Name:      "Memory",
		Exports:   count,
		SizeBytes: mc.currentSize.Load(),
		Hits:      hits,
		Misses:    misses,
		HitRate:   cache.HitRate(hits, misses),
	}
}

// Close stops the expiry loop. Cached data stays readable.
func (mc *MemoryCache) Close() {
	mc.closeOnce.Do(func() { close(mc.done) })
}

// evictLRU drops the least recently read entry. Callers hold mc.mu.
func (mc *MemoryCache) evictLRU() bool {
	var oldest uuid.UUID
	var oldestAccess int64
	found := false

	mc.metadata.Range(func(key, value interface{}) bool {
		access := value.(*memoryEntry).lastAccess.Load()
		if !found || access < oldestAccess {
			oldest = key.(uuid.UUID)
			oldestAccess = access
			found = true
		}
		return true
	})

	if found {
		mc.deleteLocked(oldest)
		mc.log.Debug("evicted export", zap.Stringer("export_id", oldest))
	}
	return found
}

func (mc *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.done:
			return
		case now := <-ticker.C:
			mc.removeExpired(now)
		}
	}
}

func (mc *MemoryCache) removeExpired(now time.Time) int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var expired []uuid.UUID
	mc.metadata.Range(func(key, value interface{}) bool {
		if now.Sub(value.(*memoryEntry).createdAt) > mc.ttl {
			expired = append(expired, key.(uuid.UUID))
		}
		return true
	})
	for _, id := range expired {
		mc.deleteLocked(id)
	}
	if len(expired) > 0 {
		mc.log.Info("removed expired exports", zap.Int("count", len(expired)))
	}
	return len(expired)
}
