package cache

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Config configures an AudioCache.
type Config struct {
	MemoryCapacity   int64  // Bytes
	DiskCapacity     int64  // Bytes; zero disables the disk cache
	Dir              string // Directory for the disk cache
	CompressionLevel int    // zstd level, 1-22
}

// DefaultConfig returns the default cache configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		MemoryCapacity:   32 * 1024 * 1024,
		DiskCapacity:     100 * 1024 * 1024,
		Dir:              dir,
		CompressionLevel: 3,
	}
}

// AudioCache checks memory first, then disk, promoting disk hits to memory.
type AudioCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// New creates an AudioCache.
func New(cfg Config) (*AudioCache, error) {
	c := &AudioCache{memory: NewMemoryCache(cfg.MemoryCapacity)}
	if cfg.DiskCapacity > 0 && cfg.Dir != "" {
		disk, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		c.disk = disk
	}
	return c, nil
}

// Get returns cached audio for key.
func (c *AudioCache) Get(key string) ([]byte, bool) {
	if data, ok := c.memory.Get(key); ok {
		return data, true
	}
	if c.disk == nil {
		return nil, false
	}
	data, ok := c.disk.Get(key)
	if ok {
		_ = c.memory.Put(key, data)
	}
	return data, ok
}

// Put stores audio under key in both levels. Disk failures are logged and
// don't fail the call since the memory copy is enough to play.
func (c *AudioCache) Put(key string, data []byte) error {
	if err := c.memory.Put(key, data); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}
	if c.disk != nil {
		if err := c.disk.Put(key, data); err != nil {
			log.Debug("Could not write audio to disk cache", "err", err)
		}
	}
	return nil
}

// Clear empties both levels.
func (c *AudioCache) Clear() error {
	c.memory.Clear()
	if c.disk != nil {
		return c.disk.Clear()
	}
	return nil
}

// MemoryStats returns L1 counters.
func (c *AudioCache) MemoryStats() Stats {
	return c.memory.Stats()
}

// DiskStats returns L2 counters; zero when the disk cache is disabled.
func (c *AudioCache) DiskStats() Stats {
	if c.disk == nil {
		return Stats{}
	}
	return c.disk.Stats()
}

// Close releases disk cache resources.
func (c *AudioCache) Close() error {
	if c.disk != nil {
		return c.disk.Close()
	}
	return nil
}
