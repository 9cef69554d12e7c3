package sync

import (
	"sort"

	"github.com/nhle/taskhub/internal/model"
)

// CommentState is what a CommentFeed presents for one task.
type CommentState struct {
	TaskID   string
	Comments []model.TaskComment
	Loading  bool
	Error    string
}

// Clone returns a deep copy of s.
func (s CommentState) Clone() CommentState {
	out := s
	out.Comments = make([]model.TaskComment, len(s.Comments))
	for i, c := range s.Comments {
		out.Comments[i] = c.Clone()
	}
	return out
}

// CommentEvent is an input to reduceComments.
type CommentEvent interface {
	commentEvent()
}

// CommentsLoaded carries the REST list of the task's comments.
type CommentsLoaded struct {
	Comments []model.TaskComment
}

// CommentsPushed carries the task's comments from a push snapshot. Cached
// holds profiles already known for their creators.
type CommentsPushed struct {
	Comments []model.TaskComment
	Cached   map[string]model.Profile
}

// ProfilesResolved fills in profiles for comments that have none yet.
type ProfilesResolved struct {
	Profiles map[string]model.Profile
}

// ProfileRefreshed replaces the profile on every comment by UserID.
type ProfileRefreshed struct {
	UserID  string
	Profile model.Profile
}

// CommentsFailed records a failed REST fetch.
type CommentsFailed struct {
	Message string
}

func (CommentsLoaded) commentEvent()   {}
func (CommentsPushed) commentEvent()   {}
func (ProfilesResolved) commentEvent() {}
func (ProfileRefreshed) commentEvent() {}
func (CommentsFailed) commentEvent()   {}

// reduceComments folds one event into s. A push replaces the list but a
// comment keeps any profile it was already enriched with; a resolved
// profile never reverts to the Unknown placeholder.
func reduceComments(s CommentState, ev CommentEvent) CommentState {
	switch ev := ev.(type) {
	case CommentsLoaded:
		s.Comments = sortOldestFirst(ev.Comments)
		s.Loading = false
		s.Error = ""

	case CommentsPushed:
		known := make(map[string]*model.Profile, len(s.Comments))
		for _, c := range s.Comments {
			if resolved(c.UserProfile) {
				known[c.ID] = c.UserProfile
			}
		}
		list := sortOldestFirst(ev.Comments)
		for i := range list {
			c := &list[i]
			if resolved(c.UserProfile) {
				continue
			}
			if p, ok := known[c.ID]; ok {
				c.UserProfile = p
			} else if p, ok := ev.Cached[c.CreatorID]; ok {
				c.UserProfile = &p
			}
		}
		s.Comments = list
		s.Loading = false

	case ProfilesResolved:
		list := cloneComments(s.Comments)
		for i := range list {
			c := &list[i]
			if resolved(c.UserProfile) {
				continue
			}
			if p, ok := ev.Profiles[c.CreatorID]; ok {
				c.UserProfile = &p
			}
		}
		s.Comments = list

	case ProfileRefreshed:
		list := cloneComments(s.Comments)
		for i := range list {
			if list[i].CreatorID == ev.UserID {
				p := ev.Profile
				list[i].UserProfile = &p
			}
		}
		s.Comments = list

	case CommentsFailed:
		s.Loading = false
		s.Error = ev.Message
	}
	return s
}

// unresolvedCreators lists creators of comments that still lack a real
// profile.
func unresolvedCreators(comments []model.TaskComment) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range comments {
		if resolved(c.UserProfile) || c.CreatorID == "" || seen[c.CreatorID] {
			continue
		}
		seen[c.CreatorID] = true
		ids = append(ids, c.CreatorID)
	}
	return ids
}

func resolved(p *model.Profile) bool {
	return p != nil && !p.IsUnknown()
}

func cloneComments(in []model.TaskComment) []model.TaskComment {
	out := make([]model.TaskComment, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func sortOldestFirst(in []model.TaskComment) []model.TaskComment {
	out := cloneComments(in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
