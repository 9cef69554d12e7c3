package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/model"
)

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up payload.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// AuthService signs users in and out and owns the stored token.
type AuthService struct {
	client *api.Client
	tokens credential.TokenStore
}

// NewAuthService creates an AuthService.
func NewAuthService(client *api.Client, tokens credential.TokenStore) *AuthService {
	return &AuthService{client: client, tokens: tokens}
}

// Login exchanges credentials for a token and stores it.
func (s *AuthService) Login(ctx context.Context, c Credentials) (*model.User, error) {
	var resp authResponse
	if err := s.client.PostPublic(ctx, "/auth/login", c, &resp); err != nil {
		return nil, fmt.Errorf("logging in as %s: %w", c.Email, err)
	}
	if resp.Token == "" {
		return nil, errors.New("login response did not include a token")
	}
	if err := s.tokens.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}
	return &resp.User, nil
}

// Register creates an account and stores the returned token.
func (s *AuthService) Register(ctx context.Context, r Registration) (*model.User, error) {
	var resp authResponse
	if err := s.client.PostPublic(ctx, "/auth/register", r, &resp); err != nil {
		return nil, fmt.Errorf("registering %s: %w", r.Email, err)
	}
	if resp.Token != "" {
		if err := s.tokens.SetToken(resp.Token); err != nil {
			return nil, fmt.Errorf("storing token: %w", err)
		}
	}
	return &resp.User, nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := s.client.Get(ctx, "/auth/me", nil, &u); err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return &u, nil
}

// Logout tells the server (best effort) and always clears the stored token.
func (s *AuthService) Logout(ctx context.Context) error {
	serverErr := s.client.Post(ctx, "/auth/logout", nil, nil)
	if err := s.tokens.Clear(); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	if serverErr != nil && !api.IsAuthError(serverErr) {
		return fmt.Errorf("logging out: %w", serverErr)
	}
	return nil
}
