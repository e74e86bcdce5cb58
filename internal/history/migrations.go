package history

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL CHECK(kind IN ('run', 'podcast', 'discover')),
    started_at TEXT NOT NULL,
    duration_ms INTEGER DEFAULT 0,
    collected INTEGER DEFAULT 0,
    failed_sources INTEGER DEFAULT 0,
    duplicates INTEGER DEFAULT 0,
    shown_filtered INTEGER DEFAULT 0,
    cache_hits INTEGER DEFAULT 0,
    fresh_scored INTEGER DEFAULT 0,
    oracle_failures INTEGER DEFAULT 0,
    admitted INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_categories (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    admitted INTEGER DEFAULT 0,
    feed_size INTEGER DEFAULT 0,
    PRIMARY KEY (run_id, category)
);

CREATE TABLE IF NOT EXISTS weekly_summaries (
    week TEXT PRIMARY KEY,
    runs INTEGER DEFAULT 0,
    collected INTEGER DEFAULT 0,
    admitted INTEGER DEFAULT 0,
    oracle_failures INTEGER DEFAULT 0,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
