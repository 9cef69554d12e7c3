package service

import (
	"context"
	"fmt"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
)

// SettingsService reads and writes the current user's preferences.
type SettingsService struct {
	client *api.Client
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(client *api.Client) *SettingsService {
	return &SettingsService{client: client}
}

// Get returns the stored settings.
func (s *SettingsService) Get(ctx context.Context) (*model.Settings, error) {
	var st model.Settings
	if err := s.client.Get(ctx, "/settings", nil, &st); err != nil {
		return nil, fmt.Errorf("fetching settings: %w", err)
	}
	return &st, nil
}

// Update replaces the stored settings.
func (s *SettingsService) Update(ctx context.Context, st model.Settings) (*model.Settings, error) {
	var out model.Settings
	if err := s.client.Put(ctx, "/settings", st, &out); err != nil {
		return nil, fmt.Errorf("updating settings: %w", err)
	}
	return &out, nil
}
