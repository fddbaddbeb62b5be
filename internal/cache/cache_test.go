package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	base := Key("piper:es_MX", "es-MX", 0.9, "Hola")
	if base != Key("piper:es_MX", "es-MX", 0.9, "Hola") {
		t.Error("Expected key to be deterministic")
	}
	others := []string{
		Key("piper:es_ES", "es-MX", 0.9, "Hola"),
		Key("piper:es_MX", "es-ES", 0.9, "Hola"),
		Key("piper:es_MX", "es-MX", 1.0, "Hola"),
		Key("piper:es_MX", "es-MX", 0.9, "Adiós"),
		Key("piper:es_M", "Xes-MX", 0.9, "Hola"),
	}
	for i, k := range others {
		if k == base {
			t.Errorf("Variant %d collided with base key", i)
		}
	}
}

func TestMemoryCacheLRU(t *testing.T) {
	c := NewMemoryCache(10)

	_ = c.Put("a", []byte("aaaa"))
	_ = c.Put("b", []byte("bbbb"))
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Expected a to be cached")
	}
	// b is now least recently used
	_ = c.Put("c", []byte("cccc"))

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Expected a to survive")
	}

	s := c.Stats()
	if s.Size != 8 || s.Items != 2 || s.Evictions != 1 {
		t.Errorf("Unexpected stats %+v", s)
	}
	if err := c.Put("huge", make([]byte, 11)); err != ErrItemTooLarge {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemoryCacheReplace(t *testing.T) {
	c := NewMemoryCache(10)
	_ = c.Put("a", []byte("aaaa"))
	_ = c.Put("a", []byte("aa"))

	if s := c.Stats(); s.Size != 2 || s.Items != 1 {
		t.Errorf("Expected replaced entry to be resized, got %+v", s)
	}
}

func TestDiskCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	audio := bytes.Repeat([]byte{0, 1, 2, 3}, 4096)

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := dc.Put("k", audio); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if s := dc.Stats(); s.Size >= int64(len(audio)) {
		t.Errorf("Expected compressed size below %d, got %d", len(audio), s.Size)
	}
	_ = dc.Close()

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close() //nolint:errcheck

	got, ok := reopened.Get("k")
	if !ok {
		t.Fatal("Expected entry to survive reopen")
	}
	if !bytes.Equal(got, audio) {
		t.Error("Decompressed audio differs from original")
	}
}

func TestDiskCacheCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad"+diskExt), []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close() //nolint:errcheck

	if _, ok := dc.Get("bad"); ok {
		t.Error("Expected corrupt entry to miss")
	}
	if _, err := os.Stat(filepath.Join(dir, "bad"+diskExt)); !os.IsNotExist(err) {
		t.Error("Expected corrupt file to be removed")
	}
}

func TestDiskCacheEviction(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close() //nolint:errcheck

	_ = dc.Put("old", []byte("first entry"))
	_ = dc.Put("new", []byte("second entry"))

	// backdate "old" so it is evicted first
	dc.mu.Lock()
	e := dc.files["old"]
	e.lastAccess = time.Now().Add(-time.Hour)
	dc.files["old"] = e
	dc.capacity = dc.size
	dc.mu.Unlock()

	if err := dc.Put("third", []byte("third entry")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := dc.Get("old"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if _, ok := dc.Get("third"); !ok {
		t.Error("Expected newest entry to be cached")
	}
}

func TestAudioCachePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c, err := New(DefaultConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Put("k", []byte("pcm"))
	_ = c.Close()

	c, err = New(DefaultConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close() //nolint:errcheck

	if got, ok := c.Get("k"); !ok || string(got) != "pcm" {
		t.Fatalf("Expected disk hit, got %q %v", got, ok)
	}
	if c.MemoryStats().Items != 1 {
		t.Error("Expected disk hit to be promoted to memory")
	}
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected memory hit")
	}
	if s := c.MemoryStats(); s.Hits != 1 {
		t.Errorf("Expected one memory hit, got %+v", s)
	}
}

func TestAudioCacheMemoryOnly(t *testing.T) {
	c, err := New(Config{MemoryCapacity: 1024})
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Put("k", []byte("pcm"))
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected memory hit")
	}
	if s := c.DiskStats(); s != (Stats{}) {
		t.Errorf("Expected zero disk stats, got %+v", s)
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after Clear")
	}
}

func TestHitRate(t *testing.T) {
	if r := (Stats{}).HitRate(); r != 0 {
		t.Errorf("Expected 0, got %v", r)
	}
	if r := (Stats{Hits: 3, Misses: 1}).HitRate(); r != 0.75 {
		t.Errorf("Expected 0.75, got %v", r)
	}
}
