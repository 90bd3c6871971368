package tasks

import (
	"context"

	"github.com/lysyi3m/html-comb/app/fetcher"
)

// DocumentFetcher retrieves listing and article pages.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Document, error)
}
