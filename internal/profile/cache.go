// Package profile resolves comment creators to display profiles through a
// lazily filled cache.
package profile

import (
	"context"
	"sync"

	"github.com/nhle/taskhub/internal/model"
)

// Cache maps user ids to profiles. Entries are never evicted except by
// Clear.
type Cache interface {
	Get(ctx context.Context, userID string) (model.Profile, bool, error)
	GetMany(ctx context.Context, userIDs []string) (map[string]model.Profile, error)
	Set(ctx context.Context, userID string, p model.Profile) error
	Clear(ctx context.Context) error
}

// MemoryCache is the default in-process Cache.
type MemoryCache struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{profiles: make(map[string]model.Profile)}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (model.Profile, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[userID]
	return p, ok, nil
}

func (c *MemoryCache) GetMany(_ context.Context, userIDs []string) (map[string]model.Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]model.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := c.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *MemoryCache) Set(_ context.Context, userID string, p model.Profile) error {
	c.mu.Lock()
	c.profiles[userID] = p
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.profiles = make(map[string]model.Profile)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached profiles.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}
