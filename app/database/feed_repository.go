package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

// UpsertFeedStatus records the outcome of a build. A failed build leaves the
// previous last_success_at in place.
func (r *feedRepository) UpsertFeedStatus(status FeedStatus) error {
	checkedAt := status.CheckedAt.UTC()
	now := time.Now().UTC()

	var lastSuccess *time.Time
	if status.Succeeded {
		lastSuccess = &checkedAt
	}

	_, err := r.db.Exec(`
		INSERT INTO feeds (name, title, output, item_count, last_error, last_checked_at, last_success_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			title = excluded.title,
			output = excluded.output,
			item_count = excluded.item_count,
			last_error = excluded.last_error,
			last_checked_at = excluded.last_checked_at,
			last_success_at = COALESCE(excluded.last_success_at, feeds.last_success_at),
			updated_at = excluded.updated_at
	`, status.Name, status.Title, status.Output, status.ItemCount, status.Error, checkedAt, lastSuccess, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert feed status: %w", err)
	}

	return nil
}

// GetFeed returns nil when the feed has never been built.
func (r *feedRepository) GetFeed(feedName string) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRow(`
		SELECT name, title, output, item_count, last_error, last_checked_at, last_success_at, created_at, updated_at
		FROM feeds
		WHERE name = ?
	`, feedName).Scan(
		&feed.Name, &feed.Title, &feed.Output, &feed.ItemCount, &feed.LastError,
		&feed.LastCheckedAt, &feed.LastSuccessAt, &feed.CreatedAt, &feed.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &feed, nil
}

func (r *feedRepository) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT name, title, output, item_count, last_error, last_checked_at, last_success_at, created_at, updated_at
		FROM feeds
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.Name, &feed.Title, &feed.Output, &feed.ItemCount, &feed.LastError,
			&feed.LastCheckedAt, &feed.LastSuccessAt, &feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}
