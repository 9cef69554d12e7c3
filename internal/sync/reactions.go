package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	gosync "sync"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
)

// ReactionKind is like or dislike.
type ReactionKind string

const (
	Like    ReactionKind = "like"
	Dislike ReactionKind = "dislike"
)

// MutationState tracks an optimistic write.
type MutationState int

const (
	Pending MutationState = iota
	Committed
	Failed
)

func (s MutationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("MutationState(%d)", int(s))
}

// ErrReactionPending is returned when a comment already has a reaction in
// flight.
var ErrReactionPending = errors.New("reaction already pending")

// ReactionAPI is the REST surface for comment reactions.
type ReactionAPI interface {
	LikeComment(ctx context.Context, taskID, commentID string) (*model.TaskComment, error)
	DislikeComment(ctx context.Context, taskID, commentID string) (*model.TaskComment, error)
}

// Reaction is the outcome of the last toggle on a comment.
type Reaction struct {
	CommentID string
	Kind      ReactionKind
	State     MutationState
	Error     string
}

type pendingReaction struct {
	Reaction
	before model.TaskComment
	after  model.TaskComment
}

// Reactions applies like and dislike toggles optimistically. While a
// toggle is pending its result is overlaid on the comment; when the server
// rejects it the overlay is dropped, which reverts the comment. A committed
// toggle stays overlaid with the server's answer until the feed receives
// server state for that comment.
type Reactions struct {
	api ReactionAPI

	mu      gosync.Mutex
	entries map[string]*pendingReaction
	notify  func()
}

// NewReactions creates an empty Reactions.
func NewReactions(svc ReactionAPI) *Reactions {
	return &Reactions{
		api:     svc,
		entries: make(map[string]*pendingReaction),
	}
}

func (r *Reactions) onChange(fn func()) {
	r.mu.Lock()
	r.notify = fn
	r.mu.Unlock()
}

func (r *Reactions) changed() {
	r.mu.Lock()
	fn := r.notify
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Toggle flips userID's kind reaction on c: adding it removes the opposite
// reaction, and toggling an existing reaction removes it. The optimistic
// comment is visible through Apply until the server answers. On success
// the server's comment is returned; on failure the comment reverts and the
// error is returned.
func (r *Reactions) Toggle(ctx context.Context, c model.TaskComment, userID string, kind ReactionKind) (model.TaskComment, error) {
	r.mu.Lock()
	if e, ok := r.entries[c.ID]; ok && e.State == Pending {
		r.mu.Unlock()
		return c, ErrReactionPending
	}
	e := &pendingReaction{
		Reaction: Reaction{CommentID: c.ID, Kind: kind, State: Pending},
		before:   c.Clone(),
		after:    applyReaction(c, userID, kind),
	}
	r.entries[c.ID] = e
	r.mu.Unlock()
	r.changed()

	var (
		updated *model.TaskComment
		err     error
	)
	switch kind {
	case Like:
		updated, err = r.api.LikeComment(ctx, c.TaskID, c.ID)
	case Dislike:
		updated, err = r.api.DislikeComment(ctx, c.TaskID, c.ID)
	default:
		err = fmt.Errorf("unknown reaction %q", kind)
	}

	r.mu.Lock()
	if err != nil {
		e.State = Failed
		e.Error = api.Message(err, "Failed to update reaction")
	} else {
		e.State = Committed
		if updated != nil {
			e.after = *updated
		}
	}
	after, before := e.after.Clone(), e.before.Clone()
	r.mu.Unlock()
	r.changed()

	if err != nil {
		return before, err
	}
	if after.UserProfile == nil {
		after.UserProfile = before.UserProfile
	}
	return after, nil
}

// Apply returns c with any pending or unsettled committed reaction
// overlaid.
func (r *Reactions) Apply(c model.TaskComment) model.TaskComment {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[c.ID]
	if !ok || e.State == Failed {
		return c
	}
	out := c.Clone()
	out.Likes = slices.Clone(e.after.Likes)
	out.Dislikes = slices.Clone(e.after.Dislikes)
	return out
}

// settle drops committed entries of the given comments once fresh server
// state for them has arrived. Pending and failed entries are kept.
func (r *Reactions) settle(comments []model.TaskComment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range comments {
		if e, ok := r.entries[c.ID]; ok && e.State == Committed {
			delete(r.entries, c.ID)
		}
	}
}

// Status returns the last reaction recorded for commentID.
func (r *Reactions) Status(commentID string) (Reaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[commentID]
	if !ok {
		return Reaction{}, false
	}
	return e.Reaction, true
}

// applyReaction computes the comment after userID toggles kind.
func applyReaction(c model.TaskComment, userID string, kind ReactionKind) model.TaskComment {
	out := c.Clone()
	same, other := &out.Likes, &out.Dislikes
	if kind == Dislike {
		same, other = &out.Dislikes, &out.Likes
	}
	if slices.Contains(*same, userID) {
		*same = slices.DeleteFunc(*same, func(id string) bool { return id == userID })
		return out
	}
	*same = append(*same, userID)
	*other = slices.DeleteFunc(*other, func(id string) bool { return id == userID })
	return out
}
