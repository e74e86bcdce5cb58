package history

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordRun inserts a run and its per-category counts. Returns the run ID.
func (db *DB) RecordRun(run *Run) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}

	result, err := tx.Exec(
		`INSERT INTO runs (kind, started_at, duration_ms, collected, failed_sources,
		duplicates, shown_filtered, cache_hits, fresh_scored, oracle_failures, admitted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Kind, run.StartedAt.UTC().Format(time.RFC3339), run.Duration.Milliseconds(),
		run.Collected, run.FailedSources, run.Duplicates, run.ShownFiltered,
		run.CacheHits, run.FreshScored, run.OracleFailures, run.Admitted,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	for _, cc := range run.Categories {
		if _, err := tx.Exec(
			`INSERT INTO run_categories (run_id, category, admitted, feed_size)
			VALUES (?, ?, ?, ?)`,
			id, cc.Category, cc.Admitted, cc.FeedSize,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting run category %q: %w", cc.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, kind, started_at, duration_ms, collected, failed_sources,
		duplicates, shown_filtered, cache_hits, fresh_scored, oracle_failures, admitted
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		categories, err := db.runCategories(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Categories = categories
	}
	return runs, nil
}

// LastRun returns the most recent run of the given kind, or nil if none exists.
func (db *DB) LastRun(kind string) (*Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, kind, started_at, duration_ms, collected, failed_sources,
		duplicates, shown_filtered, cache_hits, fresh_scored, oracle_failures, admitted
		FROM runs WHERE kind = ? ORDER BY started_at DESC, id DESC LIMIT 1`, kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	run := runs[0]
	if run.Categories, err = db.runCategories(run.ID); err != nil {
		return nil, err
	}
	return &run, nil
}

func (db *DB) runCategories(runID int64) ([]CategoryCount, error) {
	rows, err := db.conn.Query(
		`SELECT category, admitted, feed_size FROM run_categories
		WHERE run_id = ? ORDER BY category`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Admitted, &cc.FeedSize); err != nil {
			return nil, err
		}
		counts = append(counts, cc)
	}
	return counts, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.Kind, &startedAt, &durationMs, &r.Collected,
			&r.FailedSources, &r.Duplicates, &r.ShownFiltered, &r.CacheHits,
			&r.FreshScored, &r.OracleFailures, &r.Admitted); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
		}
		r.StartedAt = t
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
