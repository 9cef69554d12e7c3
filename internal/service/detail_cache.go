package service

import (
	"context"
	"sync"
	"time"

	"github.com/nhle/taskhub/internal/model"
)

// detailEntry is either an in-flight fetch (done still open) or a resolved
// aggregate waiting for its eviction timer.
type detailEntry struct {
	done    chan struct{}
	details *model.TaskDetails
	err     error
	timer   *time.Timer
}

// DetailCache collapses concurrent fetches of the same task's details into
// one request and keeps the result for a short TTL. At most one fetch per
// key is in flight at a time.
type DetailCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*detailEntry
}

// NewDetailCache creates an empty cache whose resolved entries expire
// after ttl.
func NewDetailCache(ttl time.Duration) *DetailCache {
	return &DetailCache{
		ttl:     ttl,
		entries: make(map[string]*detailEntry),
	}
}

// Do returns the cached or in-flight result for key, or runs fetch. The
// fetch runs detached from any single caller's cancellation so that one
// caller giving up does not fail the others; ctx only bounds the wait.
func (c *DetailCache) Do(
	ctx context.Context,
	key string,
	fetch func(ctx context.Context) (*model.TaskDetails, error),
) (*model.TaskDetails, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &detailEntry{done: make(chan struct{})}
		c.entries[key] = e
		go c.run(key, e, context.WithoutCancel(ctx), fetch)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return e.details, e.err
	}
}

func (c *DetailCache) run(
	key string,
	e *detailEntry,
	ctx context.Context,
	fetch func(ctx context.Context) (*model.TaskDetails, error),
) {
	details, err := fetch(ctx)

	c.mu.Lock()
	e.details, e.err = details, err
	current := c.entries[key] == e
	if current {
		if err != nil {
			delete(c.entries, key)
		} else {
			e.timer = time.AfterFunc(c.ttl, func() { c.evict(key, e) })
		}
	}
	c.mu.Unlock()

	close(e.done)
}

// evict removes key only if it still maps to e, so an old timer never
// drops a newer entry.
func (c *DetailCache) evict(key string, e *detailEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] == e {
		delete(c.entries, key)
	}
}

// Invalidate drops key. A fetch already in flight still completes for its
// waiters but is not retained.
func (c *DetailCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.entries, key)
	}
}

// Clear drops every entry.
func (c *DetailCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.entries, key)
	}
}

// Len returns the number of cached or in-flight keys.
func (c *DetailCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
