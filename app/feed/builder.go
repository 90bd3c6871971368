package feed

import (
	"log/slog"
	"sort"
	"time"
)

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Run deduplicates items by link (first occurrence wins), sorts them newest
// first and keeps at most max. Undated items sort as if published at now.
func (b *Builder) Run(items []Item, meta Metadata, max int, now time.Time) *Feed {
	seen := make(map[string]bool, len(items))
	unique := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Link != "" {
			if seen[item.Link] {
				continue
			}
			seen[item.Link] = true
		}
		unique = append(unique, item)
	}

	duplicates := len(items) - len(unique)

	sort.SliceStable(unique, func(i, j int) bool {
		return effectiveTime(unique[i], now).After(effectiveTime(unique[j], now))
	})

	if max > 0 && len(unique) > max {
		unique = unique[:max]
	}

	slog.Debug("Feed assembled",
		"feed", meta.Title,
		"input", len(items),
		"duplicates", duplicates,
		"items", len(unique))

	return &Feed{
		Metadata: meta,
		Items:    unique,
		BuiltAt:  now,
	}
}

func effectiveTime(item Item, now time.Time) time.Time {
	if item.Published != nil {
		return *item.Published
	}
	return now
}
