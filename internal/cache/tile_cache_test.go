package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *TileCache {
	t.Helper()
	c, err := NewTileCache(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("NewTileCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet_RoundTrip(t *testing.T) {
	c := newTestCache(t)

	data := []byte("jpeg-bytes")
	if err := c.Set("satellite", 18, 68851, 105313, data); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := c.Get("satellite", 18, 68851, 105313)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}

	// Layout on disk is {layer}/{z}/{x}/{y}.jpg.
	path := filepath.Join(c.BaseDir(), "satellite", "18", "68851", "105313.jpg")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected tile file at %s: %v", path, err)
	}
}

func TestGet_Miss(t *testing.T) {
	c := newTestCache(t)

	if _, ok := c.Get("satellite", 18, 1, 2); ok {
		t.Fatal("expected miss for tile never stored")
	}
	if _, ok := c.Get("roadmap", 18, 68851, 105313); ok {
		t.Fatal("expected miss for different layer")
	}
}

func TestGet_DeletedFileDropsEntry(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("satellite", 10, 5, 6, []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	os.Remove(filepath.Join(c.BaseDir(), "satellite", "10", "5", "6.jpg"))

	if _, ok := c.Get("satellite", 10, 5, 6); ok {
		t.Fatal("expected miss after the backing file was removed")
	}
	if entries, _, _ := c.Stats(); entries != 0 {
		t.Errorf("expected empty index after eviction, got %d entries", entries)
	}
}

func TestGet_TTLExpiry(t *testing.T) {
	dir := t.TempDir()
	c, err := NewTileCache(dir, 10, 1)
	if err != nil {
		t.Fatalf("NewTileCache: %v", err)
	}
	defer c.Close()

	if err := c.Set("satellite", 12, 1, 1, []byte("old")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Age the entry past the one-day TTL.
	c.mu.Lock()
	c.index[buildKey("satellite", 12, 1, 1)].CreateTime = time.Now().Add(-48 * time.Hour)
	c.mu.Unlock()

	if _, ok := c.Get("satellite", 12, 1, 1); ok {
		t.Fatal("expected expired tile to miss")
	}
}

func TestRebuildIndexFromDisk(t *testing.T) {
	dir := t.TempDir()

	c, err := NewTileCache(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewTileCache: %v", err)
	}
	if err := c.Set("satellite", 18, 100, 200, []byte("tile-a")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set("roadmap", 15, 7, 8, []byte("tile-b")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.Close()

	// Drop the index and reopen; the ZXY tree is the source of truth.
	os.Remove(filepath.Join(dir, indexFilename))

	reopened, err := NewTileCache(dir, 10, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if entries, _, _ := reopened.Stats(); entries != 2 {
		t.Fatalf("rebuilt index has %d entries, want 2", entries)
	}
	if data, ok := reopened.Get("satellite", 18, 100, 200); !ok || string(data) != "tile-a" {
		t.Errorf("satellite tile lost across rebuild: ok=%v data=%q", ok, data)
	}
}

func TestLRUEviction(t *testing.T) {
	dir := t.TempDir()
	c, err := NewTileCache(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewTileCache: %v", err)
	}
	defer c.Close()

	// Shrink the budget so two 1 KB tiles overflow it.
	c.maxSize = 1536

	payload := make([]byte, 1024)
	if err := c.Set("satellite", 10, 0, 0, payload); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Make the first tile clearly older.
	c.mu.Lock()
	c.index[buildKey("satellite", 10, 0, 0)].AccessTime = time.Now().Add(-time.Hour)
	c.mu.Unlock()

	if err := c.Set("satellite", 10, 0, 1, payload); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c.evictLRU()

	if _, ok := c.Get("satellite", 10, 0, 0); ok {
		t.Error("expected the oldest tile to be evicted")
	}
	if _, ok := c.Get("satellite", 10, 0, 1); !ok {
		t.Error("expected the recent tile to survive eviction")
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("satellite", 5, 1, 1, []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if entries, size, _ := c.Stats(); entries != 0 || size != 0 {
		t.Errorf("after Clear: %d entries, %d bytes", entries, size)
	}
}
