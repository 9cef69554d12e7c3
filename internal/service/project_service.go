package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
)

// ProjectInput is the writable subset of a project.
type ProjectInput struct {
	FacilityID  string `json:"facilityId,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Archived    *bool  `json:"archived,omitempty"`
}

// ProjectService wraps the /projects resource family.
type ProjectService struct {
	client *api.Client
}

// NewProjectService creates a ProjectService.
func NewProjectService(client *api.Client) *ProjectService {
	return &ProjectService{client: client}
}

// List returns the projects of a facility (all visible projects when
// facilityID is empty).
func (s *ProjectService) List(ctx context.Context, facilityID string, opts api.ListOptions) (*api.Page[model.Project], error) {
	q := url.Values{}
	if facilityID != "" {
		q.Set("facilityId", facilityID)
	}
	page, err := api.GetList[model.Project](ctx, s.client, "/projects", opts, q)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return page, nil
}

// Get returns a single project.
func (s *ProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := s.client.Get(ctx, projectPath(id), nil, &p); err != nil {
		return nil, fmt.Errorf("fetching project %s: %w", id, err)
	}
	return &p, nil
}

// Create adds a project.
func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*model.Project, error) {
	var p model.Project
	if err := s.client.Post(ctx, "/projects", in, &p); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return &p, nil
}

// Update modifies a project.
func (s *ProjectService) Update(ctx context.Context, id string, in ProjectInput) (*model.Project, error) {
	var p model.Project
	if err := s.client.Put(ctx, projectPath(id), in, &p); err != nil {
		return nil, fmt.Errorf("updating project %s: %w", id, err)
	}
	return &p, nil
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, projectPath(id), nil); err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	return nil
}

func projectPath(id string) string {
	return "/projects/" + url.PathEscape(id)
}
