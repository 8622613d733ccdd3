package caches

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gltf-export-service/internal/services/cache"
)

const fileCacheExt = ".export"

type FileSystemCache struct {
	basePath    string
	maxSize     int64
	currentSize atomic.Int64
	ttl         time.Duration
	mu          sync.RWMutex
	log         *zap.Logger
	done        chan struct{}
	closeOnce   sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

// NewFileSystemCache creates basePath if needed and accounts for entries left
// there by a previous run.
func NewFileSystemCache(basePath string, maxSizeBytes int64, ttl time.Duration, log *zap.Logger) (*FileSystemCache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	fsc := &FileSystemCache{
		basePath: basePath,
		maxSize:  maxSizeBytes,
		ttl:      ttl,
		log:      log.With(zap.String("layer", "FILESYSTEM")),
		done:     make(chan struct{}),
	}
	fsc.currentSize.Store(fsc.totalSize())

	go fsc.cleanupLoop(10 * time.Minute)
	return fsc, nil
}

func (fsc *FileSystemCache) Name() string {
	return "FILESYSTEM"
}

func (fsc *FileSystemCache) Store(exportID uuid.UUID, data []byte) error {
	size := int64(len(data))
	if size > fsc.maxSize {
		return fmt.Errorf("export of %d bytes exceeds file cache size %d", size, fsc.maxSize)
	}

	fsc.mu.Lock()
	defer fsc.mu.Unlock()

	filePath := fsc.filePath(exportID)
	fsc.removeFile(filePath)

	for fsc.currentSize.Load()+size > fsc.maxSize {
		if !fsc.evictOldestFile() {
			return fmt.Errorf("unable to free space for file of size %d", size)
		}
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	fsc.currentSize.Add(size)
	fsc.log.Debug("stored export", zap.Stringer("export_id", exportID), zap.Int64("bytes", size))
	return nil
}

func (fsc *FileSystemCache) Get(exportID uuid.UUID) ([]byte, error) {
	fsc.mu.RLock()
	defer fsc.mu.RUnlock()

	filePath := fsc.filePath(exportID)
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		fsc.misses.Add(1)
		return nil, cache.ErrNotFound
	}
	if err != nil {
		fsc.misses.Add(1)
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	now := time.Now()
	os.Chtimes(filePath, now, now)

	fsc.hits.Add(1)
	return data, nil
}

func (fsc *FileSystemCache) Exists(exportID uuid.UUID) (bool, error) {
	_, err := os.Stat(fsc.filePath(exportID))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (fsc *FileSystemCache) Delete(exportID uuid.UUID) error {
	fsc.mu.Lock()
	defer fsc.mu.Unlock()
	fsc.removeFile(fsc.filePath(exportID))
	return nil
}

func (fsc *FileSystemCache) Clear() error {
	fsc.mu.Lock()
	defer fsc.mu.Unlock()

	for _, entry := range fsc.entries() {
		fsc.removeFile(entry.path)
	}
	fsc.hits.Store(0)
	fsc.misses.Store(0)
	fsc.log.Info("cleared")
	return nil
}

func (fsc *FileSystemCache) GetStats() cache.LayerStats {
	fsc.mu.RLock()
	count := len(fsc.entries())
	fsc.mu.RUnlock()

	hits, misses := fsc.hits.Load(), fsc.misses.Load()
	return cache.LayerStats{
		Name:      "FileSystem",
		Exports:   count,
		SizeBytes: fsc.currentSize.Load(),
		Hits:      hits,
		Misses:    misses,
		HitRate:   cache.HitRate(hits, misses),
	}
}

// Close stops the expiry loop.
func (fsc *FileSystemCache) Close() {
	fsc.closeOnce.Do(func() { close(fsc.done) })
}

func (fsc *FileSystemCache) filePath(exportID uuid.UUID) string {
	return filepath.Join(fsc.basePath, exportID.String()+fileCacheExt)
}

type fileEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// entries lists the cache files directly under basePath. Other files are
// left alone so the directory can be shared.
func (fsc *FileSystemCache) entries() []fileEntry {
	dirEntries, err := os.ReadDir(fsc.basePath)
	if err != nil {
		return nil
	}
	var out []fileEntry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileCacheExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, fileEntry{
			path:    filepath.Join(fsc.basePath, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return out
}

func (fsc *FileSystemCache) totalSize() int64 {
	var total int64
	for _, e := range fsc.entries() {
		total += e.size
	}
	return total
}

func (fsc *FileSystemCache) removeFile(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	if err := os.Remove(path); err != nil {
		fsc.log.Warn("failed to remove cache file", zap.String("path", path), zap.Error(err))
		return false
	}
	fsc.currentSize.Add(-stat.Size())
	return true
}

// evictOldestFile removes the least recently read file. Callers hold fsc.mu.
func (fsc *FileSystemCache) evictOldestFile() bool {
	var oldest *fileEntry
	entries := fsc.entries()
	for i := range entries {
		if oldest == nil || entries[i].modTime.Before(oldest.modTime) {
			oldest = &entries[i]
		}
	}
	if oldest == nil {
		return false
	}
	return fsc.removeFile(oldest.path)
}

func (fsc *FileSystemCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-fsc.done:
			return
		case now := <-ticker.C:
			fsc.removeExpired(now)
		}
	}
}

func (fsc *FileSystemCache) removeExpired(now time.Time) int {
	fsc.mu.Lock()
	defer fsc.mu.Unlock()

	removed := 0
	for _, e := range fsc.entries() {
		if now.Sub(e.modTime) > fsc.ttl && fsc.removeFile(e.path) {
			removed++
		}
	}
	if removed > 0 {
		fsc.log.Info("removed expired exports", zap.Int("count", removed))
	}
	return removed
}
