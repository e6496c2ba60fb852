// Package cache provides caching for rendered images and view payloads.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	ImageCacheSizeMB int
	ImageTTL         time.Duration
	ViewCacheSize    int
}

// Manager manages the rendered-image and view-payload caches.
type Manager struct {
	imageCache *bigcache.BigCache
	viewCache  *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	imageCacheConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.ImageTTL,
		CleanWindow:        cfg.ImageTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       512 * 1024, // full-size choropleth PNGs
		HardMaxCacheSize:   cfg.ImageCacheSizeMB,
		Verbose:            false,
	}

	imageCache, err := bigcache.New(context.Background(), imageCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	viewCache, err := lru.New[string, []byte](cfg.ViewCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create view cache: %w", err)
	}

	return &Manager{
		imageCache: imageCache,
		viewCache:  viewCache,
	}, nil
}

// GetImage retrieves a rendered image from cache.
func (m *Manager) GetImage(key string) ([]byte, bool) {
	data, err := m.imageCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetImage stores a rendered image in cache.
func (m *Manager) SetImage(key string, data []byte) error {
	return m.imageCache.Set(key, data)
}

// GetView retrieves a view payload from cache.
func (m *Manager) GetView(key string) ([]byte, bool) {
	return m.viewCache.Get(key)
}

// SetView stores a view payload in cache.
func (m *Manager) SetView(key string, data []byte) {
	m.viewCache.Add(key, data)
}

// StyleKey generates a cache key for a map-style payload. Basin names in the
// selection may contain characters unsuited for keys, so they are hashed.
func StyleKey(dataset, selector, selected string) string {
	base := fmt.Sprintf("style:%s:%s", dataset, selector)
	return appendNameHash(base, selected)
}

// LegendKey generates a cache key for a legend payload.
func LegendKey(dataset, selector string) string {
	return fmt.Sprintf("legend:%s:%s", dataset, selector)
}

// TreemapKey generates a cache key for a treemap payload.
func TreemapKey(dataset string) string {
	return "treemap:" + dataset
}

// LegendImageKey generates a cache key for a rendered legend strip.
func LegendImageKey(dataset, selector string, w, h int) string {
	return fmt.Sprintf("legendpng:%s:%s:%dx%d", dataset, selector, w, h)
}

// MapImageKey generates a cache key for a rendered choropleth.
func MapImageKey(dataset, selector, selected string, w, h int) string {
	base := fmt.Sprintf("mappng:%s:%s:%dx%d", dataset, selector, w, h)
	return appendNameHash(base, selected)
}

func appendNameHash(base, name string) string {
	if name == "" {
		return base
	}
	h := sha256.Sum256([]byte(name))
	return base + ":" + hex.EncodeToString(h[:])[:16]
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"image_cache_len": m.imageCache.Len(),
		"image_cache_cap": m.imageCache.Capacity(),
		"view_cache_len":  m.viewCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.imageCache.Close()
}
