package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const diskExt = ".pcm.zst"

// DiskCache stores zstd-compressed audio, one file per key. File modification
// times double as the LRU order, so no separate index is kept.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	files map[string]diskEntry
	stats Stats
}

type diskEntry struct {
	size       int64
	lastAccess time.Time
}

// NewDiskCache opens (or creates) a disk cache in dir.
func NewDiskCache(dir string, capacity int64, level int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		encoder:  enc,
		decoder:  dec,
		files:    make(map[string]diskEntry),
	}
	if err := dc.scan(); err != nil {
		return nil, err
	}
	return dc, nil
}

func (dc *DiskCache) scan() error {
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), diskExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(e.Name(), diskExt)
		dc.files[key] = diskEntry{size: info.Size(), lastAccess: info.ModTime()}
		dc.size += info.Size()
	}
	return nil
}

func (dc *DiskCache) path(key string) string {
	return filepath.Join(dc.dir, key+diskExt)
}

// Get reads and decompresses the value for key.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.files[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	p := dc.path(key)
	data, err := os.ReadFile(p)
	if err == nil {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		// missing or corrupt files are dropped
		_ = os.Remove(p)
		dc.size -= entry.size
		delete(dc.files, key)
		dc.stats.Misses++
		return nil, false
	}

	now := time.Now()
	_ = os.Chtimes(p, now, now)
	entry.lastAccess = now
	dc.files[key] = entry
	dc.stats.Hits++
	return data, true
}

// Put compresses and writes value under key.
func (dc *DiskCache) Put(key string, value []byte) error {
	compressed := dc.encoder.EncodeAll(value, nil)
	n := int64(len(compressed))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if n > dc.capacity {
		return ErrItemTooLarge
	}
	if old, ok := dc.files[key]; ok {
		dc.size -= old.size
		delete(dc.files, key)
	}
	for dc.size+n > dc.capacity && len(dc.files) > 0 {
		dc.evictOldest()
	}

	p := dc.path(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	dc.files[key] = diskEntry{size: n, lastAccess: time.Now()}
	dc.size += n
	return nil
}

// Clear removes every cached file.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	var firstErr error
	for key := range dc.files {
		if err := os.Remove(dc.path(key)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	dc.files = make(map[string]diskEntry)
	dc.size = 0
	return firstErr
}

// Stats returns cache counters. Size is the compressed size on disk.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Capacity = dc.capacity
	s.Size = dc.size
	s.Items = int64(len(dc.files))
	return s
}

// Close releases the zstd encoder and decoder.
func (dc *DiskCache) Close() error {
	dc.decoder.Close()
	return dc.encoder.Close()
}

// evictOldest must be called with the lock held.
func (dc *DiskCache) evictOldest() {
	keys := make([]string, 0, len(dc.files))
	for k := range dc.files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return dc.files[keys[i]].lastAccess.Before(dc.files[keys[j]].lastAccess)
	})

	oldest := keys[0]
	_ = os.Remove(dc.path(oldest))
	dc.size -= dc.files[oldest].size
	delete(dc.files, oldest)
	dc.stats.Evictions++
}
