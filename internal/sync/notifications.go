// Package sync keeps client-side projections of server state current by
// merging REST fetches with push channel snapshots.
package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/realtime"
)

// Default feed timings.
const (
	DefaultPollInterval     = 30 * time.Second
	DefaultWatchdogInterval = 10 * time.Second
	DefaultLimit            = 20
)

// fetchTimeout is the maximum time allowed for a single REST refresh.
const fetchTimeout = 30 * time.Second

// ErrNoUser is returned when a feed is started without a user id.
var ErrNoUser = errors.New("no user id")

// NotificationAPI is the REST surface a NotificationFeed needs.
type NotificationAPI interface {
	List(ctx context.Context, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// NotificationMirror persists the last committed list for offline reads.
type NotificationMirror interface {
	SaveNotifications(ctx context.Context, userID string, list []model.Notification, unread int) error
}

// NotificationFeed presents one user's notifications and unread counter,
// sourced from a periodic REST pull and the push channel.
type NotificationFeed struct {
	api     NotificationAPI
	channel realtime.Channel
	mirror  NotificationMirror
	logger  *slog.Logger

	limit            int
	pollInterval     time.Duration
	watchdogInterval time.Duration

	mirrorMu gosync.Mutex

	mu      gosync.Mutex
	state   NotificationState
	gen     uint64
	subs    []realtime.Subscription
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
	updates chan NotificationState
}

// NotificationOption customizes a NotificationFeed.
type NotificationOption func(*NotificationFeed)

// WithIntervals overrides the poll and watchdog periods.
func WithIntervals(poll, watchdog time.Duration) NotificationOption {
	return func(f *NotificationFeed) {
		if poll > 0 {
			f.pollInterval = poll
		}
		if watchdog > 0 {
			f.watchdogInterval = watchdog
		}
	}
}

// WithLimit sets how many notifications a REST fetch loads.
func WithLimit(n int) NotificationOption {
	return func(f *NotificationFeed) {
		if n > 0 {
			f.limit = n
		}
	}
}

// WithMirror writes every committed list through to m.
func WithMirror(m NotificationMirror) NotificationOption {
	return func(f *NotificationFeed) { f.mirror = m }
}

// WithFeedLogger sets the logger.
func WithFeedLogger(l *slog.Logger) NotificationOption {
	return func(f *NotificationFeed) { f.logger = l }
}

// NewNotificationFeed creates a stopped feed.
func NewNotificationFeed(svc NotificationAPI, ch realtime.Channel, opts ...NotificationOption) *NotificationFeed {
	f := &NotificationFeed{
		api:              svc,
		channel:          ch,
		logger:           slog.Default(),
		limit:            DefaultLimit,
		pollInterval:     DefaultPollInterval,
		watchdogInterval: DefaultWatchdogInterval,
		updates:          make(chan NotificationState, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start clears the feed, loads the user's notifications over REST and
// subscribes to the user's push paths. A feed running for another user is
// stopped first. Cancelling ctx stops polling; Stop releases everything.
func (f *NotificationFeed) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	f.Stop()

	runCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.cancel = cancel
	f.state = NotificationState{UserID: userID, Loading: true}
	f.publishLocked()
	f.mu.Unlock()

	f.refresh(runCtx, gen)

	if f.channel != nil {
		f.subscribe(runCtx, gen, realtime.UserNotificationsPath(userID), func(s realtime.Snapshot) {
			list, err := decodeNotifications(s)
			if err != nil {
				f.logger.Warn("notification push ignored", "err", err)
				return
			}
			f.dispatch(gen, PushSnapshotReceived{Notifications: list})
		})
		f.subscribe(runCtx, gen, realtime.UserNotificationCountsPath(userID), func(s realtime.Snapshot) {
			n, ok, err := decodeCount(s)
			if err != nil {
				f.logger.Warn("notification count push ignored", "err", err)
				return
			}
			if ok {
				f.dispatch(gen, CountReceived{Unread: n})
			}
		})
	}

	f.wg.Add(1)
	go f.loop(runCtx, gen)
	return nil
}

func (f *NotificationFeed) subscribe(ctx context.Context, gen uint64, path string, h realtime.Handler) {
	sub, err := f.channel.Subscribe(ctx, path, h)
	if err != nil {
		// Polling keeps the feed current without push.
		f.logger.Warn("push subscription failed", "path", path, "err", err)
		return
	}

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		sub.Close()
		return
	}
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
}

// loop runs the fallback poll and the empty-list watchdog.
func (f *NotificationFeed) loop(ctx context.Context, gen uint64) {
	defer f.wg.Done()

	poll := time.NewTicker(f.pollInterval)
	defer poll.Stop()
	watchdog := time.NewTicker(f.watchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			f.refresh(ctx, gen)
		case <-watchdog.C:
			s := f.Snapshot()
			if !s.Loading && len(s.Notifications) == 0 {
				f.logger.Debug("notification list empty, refetching", "user", s.UserID)
				f.refresh(ctx, gen)
			}
		}
	}
}

// refresh fetches the list and the counter in parallel.
func (f *NotificationFeed) refresh(ctx context.Context, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var (
		list   []model.Notification
		unread int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		list, err = f.api.List(gctx, f.limit)
		return err
	})
	g.Go(func() (err error) {
		unread, err = f.api.UnreadCount(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		if api.IsCanceled(err) && ctx.Err() != nil {
			return
		}
		f.logger.Warn("notification fetch failed", "err", err)
		f.dispatch(gen, FetchFailed{Message: api.Message(err, "Failed to load notifications")})
		return
	}
	f.dispatch(gen, RestSnapshotReceived{Notifications: list, Unread: unread})
}

// MarkAsRead marks id read on the server and then locally. On failure the
// local state is unchanged apart from Error.
func (f *NotificationFeed) MarkAsRead(ctx context.Context, id string) error {
	gen := f.generation()
	if err := f.api.MarkRead(ctx, id); err != nil {
		f.dispatch(gen, MutationFailed{Message: api.Message(err, "Failed to mark notification as read")})
		return err
	}
	loaded := f.loaded(id)
	f.dispatch(gen, Marked{ID: id})
	if !loaded {
		f.syncCount(ctx, gen)
	}
	return nil
}

// MarkAllAsRead marks every notification read on the server and then
// locally.
func (f *NotificationFeed) MarkAllAsRead(ctx context.Context) error {
	gen := f.generation()
	if err := f.api.MarkAllRead(ctx); err != nil {
		f.dispatch(gen, MutationFailed{Message: api.Message(err, "Failed to mark all notifications as read")})
		return err
	}
	f.dispatch(gen, AllMarked{})
	return nil
}

// DeleteNotification deletes id on the server and then locally.
func (f *NotificationFeed) DeleteNotification(ctx context.Context, id string) error {
	gen := f.generation()
	if err := f.api.Delete(ctx, id); err != nil {
		f.dispatch(gen, MutationFailed{Message: api.Message(err, "Failed to delete notification")})
		return err
	}
	loaded := f.loaded(id)
	f.dispatch(gen, Deleted{ID: id})
	if !loaded {
		f.syncCount(ctx, gen)
	}
	return nil
}

// loaded reports whether id is in the current list window.
func (f *NotificationFeed) loaded(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.state.Notifications {
		if n.ID == id {
			return true
		}
	}
	return false
}

// syncCount refetches the unread counter. A mutation on a notification
// outside the loaded window has no local delta to apply, and whether it
// was unread is only known to the server.
func (f *NotificationFeed) syncCount(ctx context.Context, gen uint64) {
	n, err := f.api.UnreadCount(ctx)
	if err != nil {
		f.logger.Debug("refreshing unread count failed", "err", err)
		return
	}
	f.dispatch(gen, CountReceived{Unread: n})
}

// Refresh triggers an immediate REST fetch.
func (f *NotificationFeed) Refresh(ctx context.Context) {
	f.refresh(ctx, f.generation())
}

// Stop cancels both subscriptions and both timers. Callbacks still in
// flight from the stopped session are discarded.
func (f *NotificationFeed) Stop() {
	f.mu.Lock()
	f.gen++
	subs := f.subs
	f.subs = nil
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

// Snapshot returns a copy of the current state.
func (f *NotificationFeed) Snapshot() NotificationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

// Updates delivers the latest state after every change. Intermediate
// states are dropped when the reader falls behind.
func (f *NotificationFeed) Updates() <-chan NotificationState {
	return f.updates
}

func (f *NotificationFeed) generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// dispatch applies ev if it belongs to the current session.
func (f *NotificationFeed) dispatch(gen uint64, ev NotificationEvent) {
	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		f.logger.Debug("discarding stale notification event", "event", ev)
		return
	}
	f.state = reduceNotifications(f.state, ev)
	f.publishLocked()
	f.mu.Unlock()

	if f.mirror != nil && committed(ev) {
		f.saveMirror()
	}
}

// saveMirror writes the latest state; concurrent writers serialize so the
// newest state lands last.
func (f *NotificationFeed) saveMirror() {
	f.mirrorMu.Lock()
	defer f.mirrorMu.Unlock()

	snap := f.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.mirror.SaveNotifications(ctx, snap.UserID, snap.Notifications, snap.UnreadCount); err != nil {
		f.logger.Warn("mirroring notifications failed", "err", err)
	}
}

func (f *NotificationFeed) publishLocked() {
	s := f.state.Clone()
	select {
	case <-f.updates:
	default:
	}
	select {
	case f.updates <- s:
	default:
	}
}

// committed reports whether ev reflects server-confirmed list state.
func committed(ev NotificationEvent) bool {
	switch ev := ev.(type) {
	case RestSnapshotReceived, Marked, AllMarked, Deleted, CountReceived:
		return true
	case PushSnapshotReceived:
		return len(ev.Notifications) > 0
	}
	return false
}
