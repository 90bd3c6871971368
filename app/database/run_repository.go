package database

import (
	"fmt"
	"time"
)

var _ RunRepository = (*runRepository)(nil)

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) RecordRun(run Run) error {
	_, err := r.db.Exec(`
		INSERT INTO feed_runs (id, feed_name, started_at, duration_ms, item_count, succeeded, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.FeedName, run.StartedAt.UTC(), run.Duration.Milliseconds(), run.ItemCount, run.Succeeded, run.Error)

	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// GetRecentRuns returns the latest runs of a feed, newest first.
func (r *runRepository) GetRecentRuns(feedName string, limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_name, started_at, duration_ms, item_count, succeeded, error
		FROM feed_runs
		WHERE feed_name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var durationMs int64
		err := rows.Scan(&run.ID, &run.FeedName, &run.StartedAt, &durationMs, &run.ItemCount, &run.Succeeded, &run.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}
