package feed

import (
	"time"
)

// RawRecord holds the raw field values extracted from one candidate element.
type RawRecord struct {
	Fields     map[string]string // raw field name -> text
	LinkText   string            // text of the element the link came from
	SourceName string
}

type Item struct {
	Title      string
	Link       string // absolute when link resolution is enabled
	Summary    string
	Category   string
	Published  *time.Time // nil when no date could be parsed
	SourceName string
}

type Metadata struct {
	ID          string // self link of the generated feed
	Title       string
	Link        string
	Description string
	Language    string
}

// Feed is an assembled feed: items newest first, unique by link.
type Feed struct {
	Metadata
	Items   []Item
	BuiltAt time.Time
}
