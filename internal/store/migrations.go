package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	position   INTEGER NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at DATETIME NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS notification_counts (
	user_id   TEXT PRIMARY KEY,
	unread    INTEGER NOT NULL DEFAULT 0,
	synced_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_position
	ON notifications(user_id, position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS accounts (
	id              TEXT PRIMARY KEY,
	email           TEXT NOT NULL DEFAULT '',
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	profile_picture TEXT NOT NULL DEFAULT '',
	last_login_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id         TEXT PRIMARY KEY,
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	profile_picture TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
