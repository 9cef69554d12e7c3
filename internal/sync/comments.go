package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/realtime"
)

// ErrNoTask is returned when a comment feed is started without a task id.
var ErrNoTask = errors.New("no task id")

// CommentAPI is the REST surface a CommentFeed needs.
type CommentAPI interface {
	Comments(ctx context.Context, taskID string) ([]model.TaskComment, error)
}

// ProfileResolver enriches creator ids with display profiles.
type ProfileResolver interface {
	Cached(ctx context.Context, ids []string) map[string]model.Profile
	Seed(ctx context.Context, userID string, p model.Profile)
	Refresh(ctx context.Context, userID string) (model.Profile, error)
	Resolve(ctx context.Context, ids []string) (map[string]model.Profile, error)
}

// CommentFeed presents the comments of one task, oldest first, with the
// creator's profile attached. It is read-only: writes go through the task
// service.
type CommentFeed struct {
	api       CommentAPI
	channel   realtime.Channel
	profiles  ProfileResolver
	reactions *Reactions
	logger    *slog.Logger

	mu      gosync.Mutex
	state   CommentState
	gen     uint64
	sub     realtime.Subscription
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
	updates chan CommentState
}

// CommentOption customizes a CommentFeed.
type CommentOption func(*CommentFeed)

// WithReactions overlays pending reactions from r on every snapshot.
func WithReactions(r *Reactions) CommentOption {
	return func(f *CommentFeed) { f.reactions = r }
}

// WithCommentLogger sets the logger.
func WithCommentLogger(l *slog.Logger) CommentOption {
	return func(f *CommentFeed) { f.logger = l }
}

// NewCommentFeed creates a stopped feed.
func NewCommentFeed(svc CommentAPI, ch realtime.Channel, profiles ProfileResolver, opts ...CommentOption) *CommentFeed {
	f := &CommentFeed{
		api:      svc,
		channel:  ch,
		profiles: profiles,
		logger:   slog.Default(),
		updates:  make(chan CommentState, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.reactions != nil {
		f.reactions.onChange(f.republish)
	}
	return f
}

// Start switches the feed to taskID. When currentUser is set, its own
// name seeds the profile cache until the authoritative profile arrives.
// Any previous task's listener is detached first.
func (f *CommentFeed) Start(ctx context.Context, taskID string, currentUser *model.User) error {
	if taskID == "" {
		return ErrNoTask
	}
	f.Stop()

	runCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.runCtx = runCtx
	f.cancel = cancel
	f.state = CommentState{TaskID: taskID, Loading: true}
	f.publishLocked()
	f.mu.Unlock()

	if currentUser != nil && currentUser.ID != "" {
		f.profiles.Seed(runCtx, currentUser.ID, currentUser.Profile())
		f.goRun(gen, func() { f.refreshOwnProfile(runCtx, gen, currentUser.ID) })
	}

	f.load(runCtx, gen, taskID)

	if f.channel != nil {
		sub, err := f.channel.Subscribe(runCtx, realtime.PathTaskComments, func(s realtime.Snapshot) {
			f.onPush(runCtx, gen, taskID, s)
		})
		if err != nil {
			f.logger.Warn("comment subscription failed", "task", taskID, "err", err)
		} else {
			f.mu.Lock()
			if f.gen != gen {
				f.mu.Unlock()
				sub.Close()
				return nil
			}
			f.sub = sub
			f.mu.Unlock()
		}
	}
	return nil
}

func (f *CommentFeed) refreshOwnProfile(ctx context.Context, gen uint64, userID string) {
	p, err := f.profiles.Refresh(ctx, userID)
	if err != nil {
		f.logger.Debug("refreshing own profile failed", "user", userID, "err", err)
		return
	}
	f.dispatch(gen, ProfileRefreshed{UserID: userID, Profile: p})
}

// load fetches the task's comments over REST and enriches them in the
// background.
func (f *CommentFeed) load(ctx context.Context, gen uint64, taskID string) {
	list, err := f.api.Comments(ctx, taskID)
	if err != nil {
		if api.IsCanceled(err) && ctx.Err() != nil {
			return
		}
		f.logger.Warn("comment fetch failed", "task", taskID, "err", err)
		f.dispatch(gen, CommentsFailed{Message: api.Message(err, "Failed to load comments")})
		return
	}
	f.dispatch(gen, CommentsLoaded{Comments: list})
	if ids := unresolvedCreators(list); len(ids) > 0 {
		f.goRun(gen, func() { f.enrich(ctx, gen, ids) })
	}
}

func (f *CommentFeed) onPush(ctx context.Context, gen uint64, taskID string, s realtime.Snapshot) {
	if !s.Exists {
		return
	}
	all, err := decodeComments(s)
	if err != nil {
		f.logger.Warn("comment push ignored", "err", err)
		return
	}

	var mine []model.TaskComment
	for _, c := range all {
		if c.TaskID == taskID {
			mine = append(mine, c)
		}
	}
	f.merge(ctx, gen, mine)
}

// Reload refetches the current task's comments over REST and merges them
// like a push, so existing enrichments stay in place.
func (f *CommentFeed) Reload(ctx context.Context) {
	f.mu.Lock()
	gen, taskID, runCtx := f.gen, f.state.TaskID, f.runCtx
	f.mu.Unlock()
	if runCtx == nil {
		return
	}

	list, err := f.api.Comments(ctx, taskID)
	if err != nil {
		if api.IsCanceled(err) && ctx.Err() != nil {
			return
		}
		f.dispatch(gen, CommentsFailed{Message: api.Message(err, "Failed to load comments")})
		return
	}
	f.merge(runCtx, gen, list)
}

// merge applies list as the authoritative comment set, attaching cached
// profiles and enriching the rest in the background.
func (f *CommentFeed) merge(ctx context.Context, gen uint64, list []model.TaskComment) {
	creators := make([]string, 0, len(list))
	for _, c := range list {
		creators = append(creators, c.CreatorID)
	}

	cached := f.profiles.Cached(ctx, creators)
	if !f.dispatch(gen, CommentsPushed{Comments: list, Cached: cached}) {
		return
	}

	f.mu.Lock()
	missing := unresolvedCreators(f.state.Comments)
	f.mu.Unlock()

	var uncached []string
	for _, id := range missing {
		if _, ok := cached[id]; !ok {
			uncached = append(uncached, id)
		}
	}
	if len(uncached) > 0 {
		f.goRun(gen, func() { f.enrich(ctx, gen, uncached) })
	}
}

// enrich resolves ids through the profile resolver and applies them.
func (f *CommentFeed) enrich(ctx context.Context, gen uint64, ids []string) {
	if len(ids) == 0 {
		return
	}
	profiles, err := f.profiles.Resolve(ctx, ids)
	if err != nil && ctx.Err() != nil {
		return
	}
	f.dispatch(gen, ProfilesResolved{Profiles: profiles})
}

// goRun starts fn in the background unless session gen has ended.
func (f *CommentFeed) goRun(gen uint64, fn func()) {
	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		fn()
	}()
}

// Stop detaches the push listener and cancels pending lookups. Results
// still in flight for the stopped task are discarded.
func (f *CommentFeed) Stop() {
	f.mu.Lock()
	f.gen++
	sub := f.sub
	f.sub = nil
	cancel := f.cancel
	f.cancel = nil
	f.runCtx = nil
	f.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

// Snapshot returns a copy of the current state with pending reactions
// applied.
func (f *CommentFeed) Snapshot() CommentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

// Updates delivers the latest state after every change.
func (f *CommentFeed) Updates() <-chan CommentState {
	return f.updates
}

// dispatch applies ev if it belongs to the current task session and
// reports whether it did.
func (f *CommentFeed) dispatch(gen uint64, ev CommentEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return false
	}
	f.state = reduceComments(f.state, ev)
	if f.reactions != nil {
		switch ev := ev.(type) {
		case CommentsLoaded:
			f.reactions.settle(ev.Comments)
		case CommentsPushed:
			f.reactions.settle(ev.Comments)
		}
	}
	f.publishLocked()
	return true
}

func (f *CommentFeed) republish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishLocked()
}

func (f *CommentFeed) viewLocked() CommentState {
	s := f.state.Clone()
	if f.reactions != nil {
		for i := range s.Comments {
			s.Comments[i] = f.reactions.Apply(s.Comments[i])
		}
	}
	return s
}

func (f *CommentFeed) publishLocked() {
	s := f.viewLocked()
	select {
	case <-f.updates:
	default:
	}
	select {
	case f.updates <- s:
	default:
	}
}
