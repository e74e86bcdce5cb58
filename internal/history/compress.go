package history

import (
	"fmt"
	"time"
)

// detailRetention is how long full run rows are kept before being
// folded into weekly summaries.
const detailRetention = 7 * 24 * time.Hour

// Compress folds runs older than the detail retention window into
// weekly_summaries and deletes them. Returns the number of runs folded.
func (db *DB) Compress(now time.Time) (int, error) {
	// Timestamps are stored as UTC RFC3339, so string comparison
	// matches time order.
	cutoff := now.Add(-detailRetention).UTC().Format(time.RFC3339)

	rows, err := db.conn.Query(
		`SELECT started_at, collected, oracle_failures, admitted
		FROM runs WHERE started_at < ?`, cutoff,
	)
	if err != nil {
		return 0, err
	}

	weeks := make(map[string]*WeeklySummary)
	var folded int
	for rows.Next() {
		var startedAt string
		var collected, failures, admitted int
		if err := rows.Scan(&startedAt, &collected, &failures, &admitted); err != nil {
			rows.Close()
			return 0, err
		}
		t, err := time.Parse(time.RFC3339, startedAt)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
		}
		key := weekKey(t)
		w := weeks[key]
		if w == nil {
			w = &WeeklySummary{Week: key}
			weeks[key] = w
		}
		w.Runs++
		w.Collected += collected
		w.OracleFailures += failures
		w.Admitted += admitted
		folded++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if folded == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	for _, w := range weeks {
		if _, err := tx.Exec(
			`INSERT INTO weekly_summaries (week, runs, collected, admitted, oracle_failures)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(week) DO UPDATE SET
				runs = runs + excluded.runs,
				collected = collected + excluded.collected,
				admitted = admitted + excluded.admitted,
				oracle_failures = oracle_failures + excluded.oracle_failures,
				updated_at = datetime('now')`,
			w.Week, w.Runs, w.Collected, w.Admitted, w.OracleFailures,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("upserting week %s: %w", w.Week, err)
		}
	}
	// run_categories rows go with their runs via ON DELETE CASCADE.
	if _, err := tx.Exec("DELETE FROM runs WHERE started_at < ?", cutoff); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return folded, nil
}

// WeeklySummaries returns the compressed weeks, newest first.
func (db *DB) WeeklySummaries() ([]WeeklySummary, error) {
	rows, err := db.conn.Query(
		`SELECT week, runs, collected, admitted, oracle_failures
		FROM weekly_summaries ORDER BY week DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weeks []WeeklySummary
	for rows.Next() {
		var w WeeklySummary
		if err := rows.Scan(&w.Week, &w.Runs, &w.Collected, &w.Admitted, &w.OracleFailures); err != nil {
			return nil, err
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

// weekKey formats a time as an ISO week label such as "2026-W34".
func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
