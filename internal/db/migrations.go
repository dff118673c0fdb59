package db

import (
	"database/sql"
	"fmt"
)

// migration is one schema step. The schema version is sqlite's
// user_version, i.e. the number of steps applied.
type migration struct {
	name string
	up   string
}

var migrations = []migration{
	{
		name: "signin_activity",
		up: `
CREATE TABLE signin_activity (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id TEXT NOT NULL UNIQUE,
    outcome_id TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    flow TEXT NOT NULL,
    kind TEXT NOT NULL,
    code TEXT,
    session_id TEXT,
    detail TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_signin_activity_created ON signin_activity(created_at_ms);
`,
	},
}

// migrate brings the log to the latest schema in one transaction. A log
// written by a newer stride is refused rather than guessed at.
func migrate(conn *sql.DB) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var version int
	if err := tx.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("activity log schema version %d is newer than supported (%d)", version, len(migrations))
	}
	if version == len(migrations) {
		return nil
	}

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i].up); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", i+1, migrations[i].name, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, len(migrations))); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
