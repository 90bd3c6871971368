package database

import (
	"time"
)

type Feed struct {
	Name          string // Descriptor name derived from filename
	Title         string
	Output        string // Path of the generated feed file
	ItemCount     int    // Items in the last generated feed
	LastError     string
	LastCheckedAt *time.Time
	LastSuccessAt *time.Time // Kept when later runs fail
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FeedStatus is the outcome of one feed build, as stored.
type FeedStatus struct {
	Name      string
	Title     string
	Output    string
	ItemCount int
	Succeeded bool
	Error     string
	CheckedAt time.Time
}

type Run struct {
	ID        string
	FeedName  string
	StartedAt time.Time
	Duration  time.Duration
	ItemCount int
	Succeeded bool
	Error     string
}
