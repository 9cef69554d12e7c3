package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
)

// ProfileService resolves user ids to display profiles.
type ProfileService struct {
	client *api.Client
}

// NewProfileService creates a ProfileService.
func NewProfileService(client *api.Client) *ProfileService {
	return &ProfileService{client: client}
}

// GetProfile returns the profile of a single user.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var p model.Profile
	path := "/users/" + url.PathEscape(userID) + "/profile"
	if err := s.client.Get(ctx, path, nil, &p); err != nil {
		return model.Profile{}, fmt.Errorf("fetching profile %s: %w", userID, err)
	}
	return p, nil
}

// GetProfiles resolves a batch of user ids. Ids unknown to the server are
// absent from the result.
func (s *ProfileService) GetProfiles(ctx context.Context, userIDs []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ID string `json:"id"`
		model.Profile
	}
	body := map[string][]string{"ids": userIDs}
	if err := s.client.Post(ctx, "/users/profiles", body, &rows); err != nil {
		return nil, fmt.Errorf("fetching %d profiles: %w", len(userIDs), err)
	}
	for _, r := range rows {
		out[r.ID] = r.Profile
	}
	return out, nil
}
