package descriptor

import (
	"time"

	"github.com/andybalholm/cascadia"
)

const (
	DefaultMaxItems = 100
	DefaultMaxPages = 1
)

// Raw field names produced by the selector engine.
const (
	FieldTitle       = "title"
	FieldLink        = "link"
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldCategory    = "category"
)

// Descriptor is one site descriptor: feed identity plus the sources feeding it.
type Descriptor struct {
	Name string // Derived from filename (without extension)
	Path string

	Feed    FeedInfo
	Sources []Source

	Output            string
	MaxItems          int
	Location          *time.Location // nil means the runner default
	TitleSuffixSource bool
	FieldMap          map[string]string
	Filters           []Filter
}

type FeedInfo struct {
	ID          string
	Title       string
	Link        string
	Description string
	Language    string
}

type Source struct {
	Name    string
	URL     string
	BaseURL string

	Items SelectorSpec
	Link  SelectorSpec
	Date  SelectorSpec

	// Text fields in extraction order, keyed by raw field name.
	Fields []Field

	DateAttr     string
	DateFormat   string
	DateFallback DateFallback

	MaxItems       int // 0 means uncapped
	ResolveLinks   bool
	ExtractSummary bool

	NextPage SelectorSpec
	MaxPages int
}

type Field struct {
	Name string
	Spec SelectorSpec
}

// DateFallback names selectors whose texts are joined when the date fragment
// itself cannot be parsed.
type DateFallback struct {
	Day   SelectorSpec
	Month SelectorSpec
	Year  SelectorSpec
}

func (f DateFallback) IsZero() bool {
	return len(f.Day) == 0 && len(f.Month) == 0 && len(f.Year) == 0
}

type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// Selector is a compiled CSS selector, optionally reading an attribute
// instead of the element text.
type Selector struct {
	CSS   string
	Attr  string
	Match cascadia.Selector
}

func (s Selector) String() string {
	if s.Attr == "" {
		return s.CSS
	}
	return s.CSS + "@" + s.Attr
}

// SelectorSpec is an ordered list of candidate selectors, tried in priority
// order. A single YAML string and a YAML list both decode into it.
type SelectorSpec []Selector

func (s SelectorSpec) Strings() []string {
	out := make([]string, len(s))
	for i, sel := range s {
		out[i] = sel.String()
	}
	return out
}
