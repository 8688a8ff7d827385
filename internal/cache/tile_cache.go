package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"terrainav/internal/metrics"
)

// TileCache is a disk-backed cache for map tiles laid out in the
// standard ZXY structure: {baseDir}/{layer}/{z}/{x}/{y}.jpg.
// The cache survives restarts; a JSON index tracks sizes and access
// times for LRU eviction and TTL expiry.
type TileCache struct {
	baseDir   string
	maxSize   int64
	currSize  int64
	ttl       time.Duration
	mu        sync.RWMutex
	index     map[string]*TileEntry
	evictChan chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// TileEntry describes one cached tile.
type TileEntry struct {
	Key        string    `json:"key"`
	Layer      string    `json:"layer"`
	Z          int       `json:"z"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Size       int64     `json:"size"`
	AccessTime time.Time `json:"accessTime"`
	CreateTime time.Time `json:"createTime"`
}

const indexFilename = "cache_index.json"

// NewTileCache opens (or creates) a tile cache rooted at baseDir.
// maxSizeMB bounds the on-disk footprint; ttlDays expires stale
// imagery. Zero TTL disables expiry.
func NewTileCache(baseDir string, maxSizeMB int, ttlDays int) (*TileCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &TileCache{
		baseDir:   baseDir,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		ttl:       time.Duration(ttlDays) * 24 * time.Hour,
		index:     make(map[string]*TileEntry),
		evictChan: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	if err := c.loadIndex(); err != nil {
		// Index missing or corrupt: rebuild from what is on disk.
		if err := c.rebuildIndex(); err != nil {
			return nil, fmt.Errorf("failed to initialize tile cache: %w", err)
		}
	}

	go c.maintenanceWorker()

	return c, nil
}

// Get returns the cached bytes for a tile, if present and fresh.
func (c *TileCache) Get(layer string, z, x, y int) ([]byte, bool) {
	key := buildKey(layer, z, x, y)

	c.mu.RLock()
	entry, exists := c.index[key]
	c.mu.RUnlock()

	if !exists {
		metrics.CacheMisses.Inc()
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.CreateTime) > c.ttl {
		c.evict(key, entry)
		metrics.CacheMisses.Inc()
		return nil, false
	}

	data, err := os.ReadFile(c.filePath(entry))
	if err != nil {
		// File vanished behind our back; drop the stale index entry.
		c.evict(key, entry)
		metrics.CacheMisses.Inc()
		return nil, false
	}

	c.mu.Lock()
	entry.AccessTime = time.Now()
	c.mu.Unlock()

	metrics.CacheHits.Inc()
	return data, true
}

// Set stores tile bytes on disk and updates the index.
func (c *TileCache) Set(layer string, z, x, y int, data []byte) error {
	key := buildKey(layer, z, x, y)
	now := time.Now()
	entry := &TileEntry{
		Key:        key,
		Layer:      layer,
		Z:          z,
		X:          x,
		Y:          y,
		Size:       int64(len(data)),
		AccessTime: now,
		CreateTime: now,
	}

	path := c.filePath(entry)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.mu.Lock()
	if old, exists := c.index[key]; exists {
		atomic.AddInt64(&c.currSize, -old.Size)
	}
	c.index[key] = entry
	c.mu.Unlock()

	atomic.AddInt64(&c.currSize, entry.Size)

	if atomic.LoadInt64(&c.currSize) > c.maxSize {
		select {
		case c.evictChan <- struct{}{}:
		default:
		}
	}

	go c.saveIndex()

	return nil
}

// Stats returns entry count, current size and the configured maximum.
func (c *TileCache) Stats() (entries int, sizeBytes int64, maxBytes int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index), atomic.LoadInt64(&c.currSize), c.maxSize
}

// Clear removes every cached tile.
func (c *TileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.index {
		os.Remove(c.filePath(entry))
	}
	c.index = make(map[string]*TileEntry)
	atomic.StoreInt64(&c.currSize, 0)

	return c.saveIndexLocked()
}

// Close stops the maintenance worker and flushes the index.
func (c *TileCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.saveIndex()
}

// BaseDir returns the cache root directory.
func (c *TileCache) BaseDir() string {
	return c.baseDir
}

func buildKey(layer string, z, x, y int) string {
	return fmt.Sprintf("%s:%d:%d:%d", layer, z, x, y)
}

func (c *TileCache) filePath(entry *TileEntry) string {
	return filepath.Join(c.baseDir, entry.Layer,
		strconv.Itoa(entry.Z), strconv.Itoa(entry.X),
		fmt.Sprintf("%d.jpg", entry.Y))
}

func (c *TileCache) evict(key string, entry *TileEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	os.Remove(c.filePath(entry))
	delete(c.index, key)
	atomic.AddInt64(&c.currSize, -entry.Size)
	metrics.CacheEvictions.Inc()
}

func (c *TileCache) maintenanceWorker() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.evictChan:
			c.evictLRU()
		case <-ticker.C:
			c.evictExpired()
		case <-c.done:
			return
		}
	}
}

// evictLRU removes least recently used tiles until the cache is back
// under 80% of its maximum, so one oversized Set does not thrash.
func (c *TileCache) evictLRU() {
	c.mu.Lock()
	defer c.mu.Unlock()

	currSize := atomic.LoadInt64(&c.currSize)
	if currSize <= c.maxSize {
		return
	}
	targetSize := c.maxSize * 8 / 10

	entries := make([]*TileEntry, 0, len(c.index))
	for _, entry := range c.index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AccessTime.Before(entries[j].AccessTime)
	})

	for _, entry := range entries {
		if currSize <= targetSize {
			break
		}
		os.Remove(c.filePath(entry))
		delete(c.index, entry.Key)
		atomic.AddInt64(&c.currSize, -entry.Size)
		currSize -= entry.Size
		metrics.CacheEvictions.Inc()
	}

	c.saveIndexLocked()
}

func (c *TileCache) evictExpired() {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for key, entry := range c.index {
		if now.Sub(entry.CreateTime) > c.ttl {
			os.Remove(c.filePath(entry))
			delete(c.index, key)
			atomic.AddInt64(&c.currSize, -entry.Size)
			evicted++
			metrics.CacheEvictions.Inc()
		}
	}

	if evicted > 0 {
		c.saveIndexLocked()
	}
}

func (c *TileCache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.baseDir, indexFilename))
	if err != nil {
		return fmt.Errorf("failed to read cache index: %w", err)
	}

	var index map[string]*TileEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("failed to parse cache index: %w", err)
	}
	c.index = index

	var totalSize int64
	for _, entry := range index {
		totalSize += entry.Size
	}
	atomic.StoreInt64(&c.currSize, totalSize)

	return nil
}

func (c *TileCache) saveIndex() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveIndexLocked()
}

// saveIndexLocked writes the index atomically via a temp file rename.
// Callers must hold at least a read lock.
func (c *TileCache) saveIndexLocked() error {
	indexPath := filepath.Join(c.baseDir, indexFilename)

	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache index: %w", err)
	}

	tempPath := indexPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	if err := os.Rename(tempPath, indexPath); err != nil {
		return fmt.Errorf("failed to rename cache index: %w", err)
	}

	return nil
}

// rebuildIndex scans the on-disk ZXY tree and reconstructs the index.
func (c *TileCache) rebuildIndex() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]*TileEntry)
	var totalSize int64

	err := filepath.Walk(c.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != ".jpg" {
			return nil
		}

		relPath, _ := filepath.Rel(c.baseDir, path)
		parts := strings.Split(relPath, string(os.PathSeparator))
		if len(parts) != 4 {
			return nil
		}

		z, errZ := strconv.Atoi(parts[1])
		x, errX := strconv.Atoi(parts[2])
		y, errY := strconv.Atoi(strings.TrimSuffix(parts[3], ".jpg"))
		if errZ != nil || errX != nil || errY != nil {
			return nil
		}

		key := buildKey(parts[0], z, x, y)
		c.index[key] = &TileEntry{
			Key:        key,
			Layer:      parts[0],
			Z:          z,
			X:          x,
			Y:          y,
			Size:       info.Size(),
			AccessTime: info.ModTime(),
			CreateTime: info.ModTime(),
		}
		totalSize += info.Size()

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan cache directory: %w", err)
	}

	atomic.StoreInt64(&c.currSize, totalSize)

	return c.saveIndexLocked()
}
