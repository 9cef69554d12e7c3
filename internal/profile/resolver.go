package profile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/taskhub/internal/model"
)

// Retry policy for batch lookups.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 4 * time.Second
)

// Fetcher loads profiles from the API.
type Fetcher interface {
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]model.Profile, error)
}

// flight is one pending lookup of a user id.
type flight struct {
	done    chan struct{}
	profile model.Profile
	found   bool
}

// Resolver enriches user ids with profiles. Each id is fetched at most once
// per cache lifetime: concurrent lookups of the same id share one request,
// and successful results stay cached until Clear or Refresh.
type Resolver struct {
	cache   Cache
	fetcher Fetcher
	logger  *slog.Logger

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	inflight map[string]*flight
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithBackoff overrides the retry policy.
func WithBackoff(maxRetries int, base, max time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.maxRetries = maxRetries
		r.baseDelay = base
		r.maxDelay = max
	}
}

// WithSleep replaces the backoff sleeper.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ResolverOption {
	return func(r *Resolver) { r.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver over cache and fetcher.
func NewResolver(cache Cache, fetcher Fetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:      cache,
		fetcher:    fetcher,
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		sleep:      sleepContext,
		inflight:   make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the underlying cache.
func (r *Resolver) Cache() Cache {
	return r.cache
}

// Cached returns the cached profiles among ids without fetching anything.
func (r *Resolver) Cached(ctx context.Context, ids []string) map[string]model.Profile {
	got, err := r.cache.GetMany(ctx, ids)
	if err != nil {
		r.logger.Warn("profile cache read failed", "err", err)
		return map[string]model.Profile{}
	}
	return got
}

// Seed stores a provisional profile, e.g. the signed-in user's own name
// before the authoritative one is fetched.
func (r *Resolver) Seed(ctx context.Context, userID string, p model.Profile) {
	if err := r.cache.Set(ctx, userID, p); err != nil {
		r.logger.Warn("seeding profile cache failed", "user", userID, "err", err)
	}
}

// Refresh fetches userID's profile and overwrites the cache entry.
func (r *Resolver) Refresh(ctx context.Context, userID string) (model.Profile, error) {
	p, err := r.fetcher.GetProfile(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	if err := r.cache.Set(ctx, userID, p); err != nil {
		r.logger.Warn("caching refreshed profile failed", "user", userID, "err", err)
	}
	return p, nil
}

// Resolve returns a profile for every id in ids. Ids that cannot be
// resolved after retries map to model.UnknownProfile, which is not cached.
// The only error is ctx cancellation.
func (r *Resolver) Resolve(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	ids = uniqueIDs(ids)
	out := r.Cached(ctx, ids)

	var missing []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	owned, waiting := r.claim(missing)
	if len(owned) > 0 {
		r.fetchOwned(ctx, owned)
	}

	for id, f := range waiting {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-f.done:
		}
		if f.found {
			out[id] = f.profile
		} else {
			out[id] = model.UnknownProfile()
		}
	}
	for id, f := range owned {
		if f.found {
			out[id] = f.profile
		} else {
			out[id] = model.UnknownProfile()
		}
	}

	return out, ctx.Err()
}

// claim registers a flight for every id not already in flight. The caller
// owns (must complete) the returned owned flights.
func (r *Resolver) claim(ids []string) (owned, waiting map[string]*flight) {
	owned = make(map[string]*flight)
	waiting = make(map[string]*flight)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if f, ok := r.inflight[id]; ok {
			waiting[id] = f
			continue
		}
		f := &flight{done: make(chan struct{})}
		r.inflight[id] = f
		owned[id] = f
	}
	return owned, waiting
}

// fetchOwned batch-fetches the owned ids with bounded exponential backoff
// and completes their flights.
func (r *Resolver) fetchOwned(ctx context.Context, owned map[string]*flight) {
	defer func() {
		r.mu.Lock()
		for id, f := range owned {
			delete(r.inflight, id)
			close(f.done)
		}
		r.mu.Unlock()
	}()

	pending := make([]string, 0, len(owned))
	for id := range owned {
		pending = append(pending, id)
	}

	for attempt := 0; attempt <= r.maxRetries && len(pending) > 0; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff(attempt-1)); err != nil {
				return
			}
		}

		got, err := r.fetcher.GetProfiles(ctx, pending)
		if err != nil {
			r.logger.Debug("profile lookup failed",
				"ids", len(pending), "attempt", attempt+1, "err", err)
			continue
		}

		rest := make([]string, 0, len(pending))
		for _, id := range pending {
			p, ok := got[id]
			if !ok {
				rest = append(rest, id)
				continue
			}
			owned[id].profile = p
			owned[id].found = true
			if err := r.cache.Set(ctx, id, p); err != nil {
				r.logger.Warn("caching profile failed", "user", id, "err", err)
			}
		}
		pending = rest
	}

	if len(pending) > 0 {
		r.logger.Debug("profiles unresolved, using placeholder", "ids", pending)
	}
}

// backoff returns base * 2^attempt capped at maxDelay.
func (r *Resolver) backoff(attempt int) time.Duration {
	d := r.baseDelay << uint(attempt)
	if d > r.maxDelay || d <= 0 {
		d = r.maxDelay
	}
	return d
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
