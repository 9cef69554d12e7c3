package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
)

// DefaultDetailTTL is how long a resolved task detail aggregate is reused.
const DefaultDetailTTL = 5000 * time.Millisecond

// TaskFilter narrows task list queries.
type TaskFilter struct {
	ProjectID  string
	FacilityID string
	Status     string
	Pinned     *bool
	api.ListOptions
}

func (f TaskFilter) values() url.Values {
	q := url.Values{}
	if f.ProjectID != "" {
		q.Set("projectId", f.ProjectID)
	}
	if f.FacilityID != "" {
		q.Set("facilityId", f.FacilityID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Pinned != nil {
		q.Set("pinned", fmt.Sprintf("%t", *f.Pinned))
	}
	return q
}

// TaskInput is the writable subset of a task.
type TaskInput struct {
	ProjectID   string     `json:"projectId,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeIDs []string   `json:"assigneeIds,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// CommentInput is the payload for creating or editing a comment.
type CommentInput struct {
	Content         string         `json:"content"`
	ParentCommentID string         `json:"parentCommentId,omitempty"`
	Formatting      map[string]any `json:"formatting,omitempty"`
}

// TaskService wraps the /tasks resource family and aggregates task details.
type TaskService struct {
	client *api.Client
	cache  *DetailCache
	logger *slog.Logger
}

// NewTaskService creates a TaskService. A nil cache gets a fresh one with
// DefaultDetailTTL.
func NewTaskService(client *api.Client, cache *DetailCache, logger *slog.Logger) *TaskService {
	if cache == nil {
		cache = NewDetailCache(DefaultDetailTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{client: client, cache: cache, logger: logger}
}

// Cache exposes the detail cache so callers can clear it on sign-out.
func (s *TaskService) Cache() *DetailCache {
	return s.cache
}

// List returns a page of tasks.
func (s *TaskService) List(ctx context.Context, f TaskFilter) (*api.Page[model.Task], error) {
	page, err := api.GetList[model.Task](ctx, s.client, "/tasks", f.ListOptions, f.values())
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return page, nil
}

// Get returns a single task.
func (s *TaskService) Get(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	if err := s.client.Get(ctx, taskPath(taskID), nil, &task); err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", taskID, err)
	}
	return &task, nil
}

// Create adds a new task.
func (s *TaskService) Create(ctx context.Context, in TaskInput) (*model.Task, error) {
	var task model.Task
	if err := s.client.Post(ctx, "/tasks", in, &task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

// Update modifies a task. The details cache entry is evicted before the
// write is reported as complete.
func (s *TaskService) Update(ctx context.Context, taskID string, in TaskInput) (*model.Task, error) {
	var task model.Task
	if err := s.client.Put(ctx, taskPath(taskID), in, &task); err != nil {
		return nil, fmt.Errorf("updating task %s: %w", taskID, err)
	}
	s.cache.Invalidate(taskID)
	return &task, nil
}

// Pin sets or clears the pinned flag.
func (s *TaskService) Pin(ctx context.Context, taskID string, pinned bool) (*model.Task, error) {
	var task model.Task
	body := map[string]bool{"pinned": pinned}
	if err := s.client.Patch(ctx, taskPath(taskID)+"/pin", body, &task); err != nil {
		return nil, fmt.Errorf("pinning task %s: %w", taskID, err)
	}
	s.cache.Invalidate(taskID)
	return &task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, taskID string) error {
	if err := s.client.Delete(ctx, taskPath(taskID), nil); err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	s.cache.Invalidate(taskID)
	return nil
}

// GetTaskDetails fetches the task and its six related collections as one
// unit. Concurrent callers for the same task share one round of requests,
// and a successful result is reused until the cache TTL elapses. A failure
// is not cached.
func (s *TaskService) GetTaskDetails(ctx context.Context, taskID string) (*model.TaskDetails, error) {
	return s.cache.Do(ctx, taskID, func(ctx context.Context) (*model.TaskDetails, error) {
		return s.fetchDetails(ctx, taskID)
	})
}

// fetchDetails issues the seven requests in parallel.
func (s *TaskService) fetchDetails(ctx context.Context, taskID string) (*model.TaskDetails, error) {
	s.logger.Debug("fetching task details", "task", taskID)

	d := &model.TaskDetails{}
	base := taskPath(taskID)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.client.Get(gctx, base, nil, &d.Task)
	})
	g.Go(func() error {
		return fetchAll(gctx, s.client, base+"/comments", &d.Comments)
	})
	g.Go(func() error {
		return fetchAll(gctx, s.client, base+"/attachments", &d.Attachments)
	})
	g.Go(func() error {
		return fetchAll(gctx, s.client, base+"/dependencies", &d.Dependencies)
	})
	g.Go(func() error {
		return fetchAll(gctx, s.client, base+"/subtasks", &d.Subtasks)
	})
	g.Go(func() error {
		return fetchAll(gctx, s.client, base+"/time-logs", &d.TimeLogs)
	})
	g.Go(func() error {
		return fetchAll(gctx, s.client, base+"/activity-logs", &d.ActivityLogs)
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching details for task %s: %w", taskID, err)
	}
	return d, nil
}

// Comments lists the comments of a task.
func (s *TaskService) Comments(ctx context.Context, taskID string) ([]model.TaskComment, error) {
	var out []model.TaskComment
	if err := fetchAll(ctx, s.client, taskPath(taskID)+"/comments", &out); err != nil {
		return nil, fmt.Errorf("listing comments for task %s: %w", taskID, err)
	}
	return out, nil
}

// AddComment posts a new comment.
func (s *TaskService) AddComment(ctx context.Context, taskID string, in CommentInput) (*model.TaskComment, error) {
	var c model.TaskComment
	if err := s.client.Post(ctx, taskPath(taskID)+"/comments", in, &c); err != nil {
		return nil, fmt.Errorf("adding comment to task %s: %w", taskID, err)
	}
	s.cache.Invalidate(taskID)
	return &c, nil
}

// EditComment replaces a comment's content.
func (s *TaskService) EditComment(ctx context.Context, taskID, commentID string, in CommentInput) (*model.TaskComment, error) {
	var c model.TaskComment
	if err := s.client.Put(ctx, commentPath(taskID, commentID), in, &c); err != nil {
		return nil, fmt.Errorf("editing comment %s: %w", commentID, err)
	}
	s.cache.Invalidate(taskID)
	return &c, nil
}

// DeleteComment removes a comment.
func (s *TaskService) DeleteComment(ctx context.Context, taskID, commentID string) error {
	if err := s.client.Delete(ctx, commentPath(taskID, commentID), nil); err != nil {
		return fmt.Errorf("deleting comment %s: %w", commentID, err)
	}
	s.cache.Invalidate(taskID)
	return nil
}

// LikeComment toggles the caller's like and returns the updated comment.
func (s *TaskService) LikeComment(ctx context.Context, taskID, commentID string) (*model.TaskComment, error) {
	return s.react(ctx, taskID, commentID, "like")
}

// DislikeComment toggles the caller's dislike and returns the updated comment.
func (s *TaskService) DislikeComment(ctx context.Context, taskID, commentID string) (*model.TaskComment, error) {
	return s.react(ctx, taskID, commentID, "dislike")
}

func (s *TaskService) react(ctx context.Context, taskID, commentID, kind string) (*model.TaskComment, error) {
	var c model.TaskComment
	if err := s.client.Post(ctx, commentPath(taskID, commentID)+"/"+kind, nil, &c); err != nil {
		return nil, fmt.Errorf("%s comment %s: %w", kind, commentID, err)
	}
	s.cache.Invalidate(taskID)
	return &c, nil
}

// fetchAll reads every item of a list endpoint into out.
func fetchAll[T any](ctx context.Context, c *api.Client, path string, out *[]T) error {
	page, err := api.GetList[T](ctx, c, path, api.ListOptions{}, nil)
	if err != nil {
		return err
	}
	*out = page.Items
	return nil
}

func taskPath(taskID string) string {
	return "/tasks/" + url.PathEscape(taskID)
}

func commentPath(taskID, commentID string) string {
	return taskPath(taskID) + "/comments/" + url.PathEscape(commentID)
}
