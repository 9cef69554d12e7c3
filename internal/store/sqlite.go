package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/taskhub/internal/model"
)

// SQLiteStore implements Mirror using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database is private to its connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveNotifications replaces the stored list and counter of userID.
func (s *SQLiteStore) SaveNotifications(
	ctx context.Context,
	userID string,
	list []model.Notification,
	unread int,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing notifications of %s: %w", userID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO notifications (id, user_id, position, read, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, n := range list {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshaling notification %s: %w", n.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			n.ID, userID, i, boolToInt(n.Read), n.CreatedAt.UTC(), string(payload),
		)
		if err != nil {
			return fmt.Errorf("inserting notification %s: %w", n.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO notification_counts (user_id, unread, synced_at)
		VALUES (?, ?, ?)`,
		userID, unread, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving unread count of %s: %w", userID, err)
	}

	return tx.Commit()
}

// LoadNotifications returns the last saved state of userID, newest first.
func (s *SQLiteStore) LoadNotifications(
	ctx context.Context,
	userID string,
) (*NotificationSnapshot, error) {
	var counts struct {
		Unread   int       `db:"unread"`
		SyncedAt time.Time `db:"synced_at"`
	}
	err := s.db.GetContext(ctx, &counts,
		"SELECT unread, synced_at FROM notification_counts WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading unread count of %s: %w", userID, err)
	}

	var payloads []string
	err = s.db.SelectContext(ctx, &payloads,
		"SELECT payload FROM notifications WHERE user_id = ? ORDER BY position", userID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications of %s: %w", userID, err)
	}

	snap := &NotificationSnapshot{
		UserID:        userID,
		UnreadCount:   counts.Unread,
		SyncedAt:      counts.SyncedAt,
		Notifications: make([]model.Notification, 0, len(payloads)),
	}
	for _, p := range payloads {
		var n model.Notification
		if err := json.Unmarshal([]byte(p), &n); err != nil {
			return nil, fmt.Errorf("decoding stored notification: %w", err)
		}
		snap.Notifications = append(snap.Notifications, n)
	}
	return snap, nil
}

// SaveUser records u as the most recently signed-in account.
func (s *SQLiteStore) SaveUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (
			id, email, first_name, last_name, profile_picture, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.ProfilePicture, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", u.ID, err)
	}
	return nil
}

// LastUser returns the most recently signed-in account.
func (s *SQLiteStore) LastUser(ctx context.Context) (*model.User, error) {
	var row struct {
		ID             string `db:"id"`
		Email          string `db:"email"`
		FirstName      string `db:"first_name"`
		LastName       string `db:"last_name"`
		ProfilePicture string `db:"profile_picture"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, first_name, last_name, profile_picture
		FROM accounts ORDER BY last_login_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading last account: %w", err)
	}
	return &model.User{
		ID:             row.ID,
		Email:          row.Email,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		ProfilePicture: row.ProfilePicture,
	}, nil
}

// ForgetUser removes the account and its mirrored notifications.
func (s *SQLiteStore) ForgetUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM accounts WHERE id = ?",
		"DELETE FROM notifications WHERE user_id = ?",
		"DELETE FROM notification_counts WHERE user_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return fmt.Errorf("forgetting account %s: %w", userID, err)
		}
	}
	return tx.Commit()
}

// boolToInt converts a Go bool to an SQLite integer (0 or 1).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
