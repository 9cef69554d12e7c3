package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
)

// FacilityInput is the writable subset of a facility.
type FacilityInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// FacilityService wraps the /facilities resource family.
type FacilityService struct {
	client *api.Client
}

// NewFacilityService creates a FacilityService.
func NewFacilityService(client *api.Client) *FacilityService {
	return &FacilityService{client: client}
}

// List returns the facilities visible to the current user.
func (s *FacilityService) List(ctx context.Context, opts api.ListOptions) (*api.Page[model.Facility], error) {
	page, err := api.GetList[model.Facility](ctx, s.client, "/facilities", opts, nil)
	if err != nil {
		return nil, fmt.Errorf("listing facilities: %w", err)
	}
	return page, nil
}

// Get returns one facility.
func (s *FacilityService) Get(ctx context.Context, id string) (*model.Facility, error) {
	var f model.Facility
	if err := s.client.Get(ctx, facilityPath(id), nil, &f); err != nil {
		return nil, fmt.Errorf("fetching facility %s: %w", id, err)
	}
	return &f, nil
}

// Create adds a facility owned by the current user.
func (s *FacilityService) Create(ctx context.Context, in FacilityInput) (*model.Facility, error) {
	var f model.Facility
	if err := s.client.Post(ctx, "/facilities", in, &f); err != nil {
		return nil, fmt.Errorf("creating facility: %w", err)
	}
	return &f, nil
}

// Update modifies a facility.
func (s *FacilityService) Update(ctx context.Context, id string, in FacilityInput) (*model.Facility, error) {
	var f model.Facility
	if err := s.client.Put(ctx, facilityPath(id), in, &f); err != nil {
		return nil, fmt.Errorf("updating facility %s: %w", id, err)
	}
	return &f, nil
}

// Delete removes a facility.
func (s *FacilityService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, facilityPath(id), nil); err != nil {
		return fmt.Errorf("deleting facility %s: %w", id, err)
	}
	return nil
}

// FacilityShareService manages who else can access a facility.
type FacilityShareService struct {
	client *api.Client
}

// NewFacilityShareService creates a FacilityShareService.
func NewFacilityShareService(client *api.Client) *FacilityShareService {
	return &FacilityShareService{client: client}
}

// List returns the shares of a facility.
func (s *FacilityShareService) List(ctx context.Context, facilityID string) ([]model.FacilityShare, error) {
	var out []model.FacilityShare
	if err := fetchAll(ctx, s.client, facilityPath(facilityID)+"/shares", &out); err != nil {
		return nil, fmt.Errorf("listing shares of facility %s: %w", facilityID, err)
	}
	return out, nil
}

// Invite shares a facility with the given email and role.
func (s *FacilityShareService) Invite(ctx context.Context, facilityID, email, role string) (*model.FacilityShare, error) {
	switch role {
	case model.ShareRoleViewer, model.ShareRoleEditor, model.ShareRoleAdmin:
	default:
		return nil, fmt.Errorf("invalid share role %q", role)
	}

	var sh model.FacilityShare
	body := map[string]string{"email": email, "role": role}
	if err := s.client.Post(ctx, facilityPath(facilityID)+"/shares", body, &sh); err != nil {
		return nil, fmt.Errorf("sharing facility %s with %s: %w", facilityID, email, err)
	}
	return &sh, nil
}

// UpdateRole changes the role of an existing share.
func (s *FacilityShareService) UpdateRole(ctx context.Context, facilityID, shareID, role string) (*model.FacilityShare, error) {
	var sh model.FacilityShare
	body := map[string]string{"role": role}
	if err := s.client.Put(ctx, sharePath(facilityID, shareID), body, &sh); err != nil {
		return nil, fmt.Errorf("updating share %s: %w", shareID, err)
	}
	return &sh, nil
}

// Revoke removes a share.
func (s *FacilityShareService) Revoke(ctx context.Context, facilityID, shareID string) error {
	if err := s.client.Delete(ctx, sharePath(facilityID, shareID), nil); err != nil {
		return fmt.Errorf("revoking share %s: %w", shareID, err)
	}
	return nil
}

func facilityPath(id string) string {
	return "/facilities/" + url.PathEscape(id)
}

func sharePath(facilityID, shareID string) string {
	return facilityPath(facilityID) + "/shares/" + url.PathEscape(shareID)
}
