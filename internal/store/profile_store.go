package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/taskhub/internal/model"
)

// profileRow maps the profiles table.
type profileRow struct {
	UserID         string `db:"user_id"`
	FirstName      string `db:"first_name"`
	LastName       string `db:"last_name"`
	ProfilePicture string `db:"profile_picture"`
}

func (r profileRow) profile() model.Profile {
	return model.Profile{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		ProfilePicture: r.ProfilePicture,
	}
}

// Get returns the stored profile of userID.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (model.Profile, bool, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, first_name, last_name, profile_picture
		FROM profiles WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, fmt.Errorf("reading profile %s: %w", userID, err)
	}
	return row.profile(), true, nil
}

// GetMany returns the stored profiles among userIDs.
func (s *SQLiteStore) GetMany(ctx context.Context, userIDs []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT user_id, first_name, last_name, profile_picture
		FROM profiles WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("building profile query: %w", err)
	}

	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	for _, r := range rows {
		out[r.UserID] = r.profile()
	}
	return out, nil
}

// Set stores p for userID, replacing any previous entry.
func (s *SQLiteStore) Set(ctx context.Context, userID string, p model.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profiles (
			user_id, first_name, last_name, profile_picture, updated_at
		) VALUES (?, ?, ?, ?, ?)`,
		userID, p.FirstName, p.LastName, p.ProfilePicture, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", userID, err)
	}
	return nil
}

// Clear removes every stored profile.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profiles"); err != nil {
		return fmt.Errorf("clearing profiles: %w", err)
	}
	return nil
}
