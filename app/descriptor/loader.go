package descriptor

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type rawSource struct {
	Name                 string                  `yaml:"name"`
	URL                  string                  `yaml:"url"`
	BaseURL              string                  `yaml:"base_url"`
	ItemSelector         SelectorSpec            `yaml:"item_selector"`
	TitleSelector        SelectorSpec            `yaml:"title_selector"`
	LinkSelector         SelectorSpec            `yaml:"link_selector"`
	DateSelector         SelectorSpec            `yaml:"date_selector"`
	DateAttr             string                  `yaml:"date_attr"`
	DateFormat           string                  `yaml:"date_format"`
	DateFallback         rawDateFallback         `yaml:"date_fallback"`
	FallbackYearSelector SelectorSpec            `yaml:"fallback_year_selector"`
	SummarySelector      SelectorSpec            `yaml:"summary_selector"`
	DescriptionSelector  SelectorSpec            `yaml:"description_selector"`
	CategorySelector     SelectorSpec            `yaml:"category_selector"`
	Fields               map[string]SelectorSpec `yaml:"fields"`
	MaxItems             int                     `yaml:"max_items"`
	ResolveLinks         *bool                   `yaml:"resolve_links"`
	ExtractSummary       bool                    `yaml:"extract_summary"`
	NextPageSelector     SelectorSpec            `yaml:"next_page_selector"`
	MaxPages             int                     `yaml:"max_pages"`
}

type rawDateFallback struct {
	DaySelector   SelectorSpec `yaml:"day_selector"`
	MonthSelector SelectorSpec `yaml:"month_selector"`
	YearSelector  SelectorSpec `yaml:"year_selector"`
}

type rawFeed struct {
	ID                string            `yaml:"id"`
	Title             string            `yaml:"title"`
	Link              string            `yaml:"link"`
	Description       string            `yaml:"description"`
	Language          string            `yaml:"language"`
	Output            string            `yaml:"output"`
	MaxItems          int               `yaml:"max_items"`
	Timezone          string            `yaml:"timezone"`
	TitleSuffixSource bool              `yaml:"title_suffix_source"`
	FieldMap          map[string]string `yaml:"field_map"`
}

type rawDescriptor struct {
	// Legacy descriptors put a single source at the top level.
	Single  rawSource   `yaml:",inline"`
	Scraper *rawSource  `yaml:"scraper"`
	Feed    rawFeed     `yaml:"feed"`
	Sources []rawSource `yaml:"sources"`
	Sites   []rawSource `yaml:"sites"`
	Filters []Filter    `yaml:"filters"`
	Limits  struct {
		MaxItems int `yaml:"max_items"`
	} `yaml:"limits"`
}

// Loader reads site descriptors from a directory
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadResult holds the descriptors that loaded cleanly and one ConfigError per
// descriptor file that did not.
type LoadResult struct {
	Descriptors []*Descriptor
	Failures    []*ConfigError
}

func (l *Loader) LoadAll() (*LoadResult, error) {
	result := &LoadResult{}

	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return result, nil
	}

	files, err := l.files()
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		d, err := l.Load(file)
		if err != nil {
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				cfgErr = &ConfigError{Descriptor: nameFromPath(file), Reason: "failed to load", Err: err}
			}
			slog.Warn("Descriptor rejected", "file", file, "error", cfgErr)
			result.Failures = append(result.Failures, cfgErr)
			continue
		}

		slog.Debug("Descriptor loaded", "feed", d.Name, "sources", len(d.Sources))
		result.Descriptors = append(result.Descriptors, d)
	}

	return result, nil
}

func (l *Loader) files() ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(l.dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to find descriptor files: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) Load(path string) (*Descriptor, error) {
	name := nameFromPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Descriptor: name, Reason: "failed to read file", Err: err}
	}

	d, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	d.Path = path

	return d, nil
}

// Parse decodes and validates one descriptor document.
func Parse(name string, data []byte) (*Descriptor, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ConfigError{Descriptor: name, Reason: "failed to parse YAML", Err: err}
	}
	if len(root.Content) == 0 {
		return nil, &ConfigError{Descriptor: name, Reason: "descriptor is empty"}
	}

	var raw rawDescriptor
	doc := root.Content[0]

	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&raw.Sources); err != nil {
			return nil, &ConfigError{Descriptor: name, Key: "sources", Reason: "malformed source list", Err: err}
		}
	case yaml.MappingNode:
		if err := doc.Decode(&raw); err != nil {
			return nil, &ConfigError{Descriptor: name, Reason: "malformed descriptor", Err: err}
		}
	default:
		return nil, &ConfigError{Descriptor: name, Reason: "top-level value must be a mapping or a list of sources"}
	}

	return build(name, &raw)
}

func build(name string, raw *rawDescriptor) (*Descriptor, error) {
	fail := func(key, reason string, err error) error {
		return &ConfigError{Descriptor: name, Key: key, Reason: reason, Err: err}
	}

	d := &Descriptor{
		Name: name,
		Feed: FeedInfo{
			ID:          raw.Feed.ID,
			Title:       cmp.Or(raw.Feed.Title, name),
			Link:        raw.Feed.Link,
			Description: raw.Feed.Description,
			Language:    raw.Feed.Language,
		},
		Output:            raw.Feed.Output,
		MaxItems:          cmp.Or(raw.Feed.MaxItems, raw.Limits.MaxItems),
		TitleSuffixSource: raw.Feed.TitleSuffixSource,
		FieldMap:          raw.Feed.FieldMap,
		Filters:           raw.Filters,
	}

	if raw.Feed.MaxItems < 0 || raw.Limits.MaxItems < 0 {
		return nil, fail("feed.max_items", "must be non-negative", nil)
	}
	if d.MaxItems == 0 {
		d.MaxItems = DefaultMaxItems
	}

	if raw.Feed.Timezone != "" {
		loc, err := time.LoadLocation(raw.Feed.Timezone)
		if err != nil {
			return nil, fail("feed.timezone", "unknown timezone", err)
		}
		d.Location = loc
	}

	if err := validateFilters(d.Filters); err != nil {
		return nil, fail("filters", err.Error(), nil)
	}

	sources := liftSources(raw)
	if len(sources) == 0 {
		return nil, fail("sources", "at least one source is required", nil)
	}

	for i, rs := range sources {
		key := fmt.Sprintf("sources[%d]", i)
		if len(raw.Sources) == 0 && len(raw.Sites) == 0 {
			key = "source"
		}

		s, err := buildSource(rs, i)
		if err != nil {
			err.Descriptor = name
			err.Key = key + "." + err.Key
			return nil, err
		}
		d.Sources = append(d.Sources, s)
	}

	if d.Feed.Link == "" {
		d.Feed.Link = d.Sources[0].URL
	}
	if d.Feed.Description == "" {
		d.Feed.Description = fmt.Sprintf("%s - automatically updated", d.Feed.Title)
	}

	return d, nil
}

// liftSources turns every accepted descriptor shape into a source list.
func liftSources(raw *rawDescriptor) []rawSource {
	sources := append([]rawSource{}, raw.Sources...)
	sources = append(sources, raw.Sites...)
	if len(sources) > 0 {
		return sources
	}

	if raw.Scraper != nil {
		s := *raw.Scraper
		s.URL = cmp.Or(s.URL, raw.Single.URL)
		s.BaseURL = cmp.Or(s.BaseURL, raw.Single.BaseURL)
		s.Name = cmp.Or(s.Name, raw.Single.Name)
		return []rawSource{s}
	}

	if raw.Single.URL != "" || len(raw.Single.ItemSelector) > 0 {
		return []rawSource{raw.Single}
	}

	return nil
}

func buildSource(rs rawSource, index int) (Source, *ConfigError) {
	fail := func(key, reason string, err error) (Source, *ConfigError) {
		return Source{}, &ConfigError{Key: key, Reason: reason, Err: err}
	}

	if strings.TrimSpace(rs.URL) == "" {
		return fail("url", "is required", nil)
	}
	if len(rs.ItemSelector) == 0 {
		return fail("item_selector", "is required", nil)
	}
	if rs.MaxItems < 0 {
		return fail("max_items", "must be non-negative", nil)
	}
	if rs.MaxPages < 0 {
		return fail("max_pages", "must be non-negative", nil)
	}

	year := rs.DateFallback.YearSelector
	if len(year) == 0 {
		year = rs.FallbackYearSelector
	}

	s := Source{
		Name:           cmp.Or(rs.Name, hostOf(rs.URL), fmt.Sprintf("source-%d", index+1)),
		URL:            strings.TrimSpace(rs.URL),
		BaseURL:        cmp.Or(strings.TrimSpace(rs.BaseURL), strings.TrimSpace(rs.URL)),
		Items:          rs.ItemSelector,
		Link:           rs.LinkSelector.withDefaultAttr("href"),
		Date:           rs.DateSelector.withDefaultAttr(rs.DateAttr),
		DateAttr:       rs.DateAttr,
		DateFormat:     rs.DateFormat,
		MaxItems:       rs.MaxItems,
		ResolveLinks:   rs.ResolveLinks == nil || *rs.ResolveLinks,
		ExtractSummary: rs.ExtractSummary,
		NextPage:       rs.NextPageSelector.withDefaultAttr("href"),
		MaxPages:       cmp.Or(rs.MaxPages, DefaultMaxPages),
		DateFallback: DateFallback{
			Day:   rs.DateFallback.DaySelector,
			Month: rs.DateFallback.MonthSelector,
			Year:  year,
		},
	}

	s.Fields = textFields(rs)

	specs := map[string]SelectorSpec{
		"item_selector":                s.Items,
		"link_selector":                s.Link,
		"date_selector":                s.Date,
		"next_page_selector":           s.NextPage,
		"date_fallback.day_selector":   s.DateFallback.Day,
		"date_fallback.month_selector": s.DateFallback.Month,
		"date_fallback.year_selector":  s.DateFallback.Year,
	}
	for _, f := range s.Fields {
		specs[f.Name+"_selector"] = f.Spec
	}

	for key, spec := range specs {
		if err := spec.compile(); err != nil {
			return fail(key, "invalid selector", err)
		}
	}

	return s, nil
}

// textFields lists the text fields of a source: the well-known ones first, then
// any extra "fields" entries sorted by name.
func textFields(rs rawSource) []Field {
	var fields []Field
	add := func(name string, spec SelectorSpec) {
		if len(spec) > 0 {
			fields = append(fields, Field{Name: name, Spec: spec})
		}
	}

	add(FieldTitle, rs.TitleSelector)
	add(FieldSummary, rs.SummarySelector)
	add(FieldDescription, rs.DescriptionSelector)
	add(FieldCategory, rs.CategorySelector)

	extra := make([]string, 0, len(rs.Fields))
	for name := range rs.Fields {
		extra = append(extra, name)
	}
	sort.Strings(extra)

	for _, name := range extra {
		switch name {
		case FieldTitle, FieldSummary, FieldDescription, FieldCategory, FieldLink:
			continue
		}
		add(name, rs.Fields[name])
	}

	return fields
}

var validFilterFields = map[string]bool{
	"title":    true,
	"summary":  true,
	"link":     true,
	"category": true,
	"source":   true,
}

func validateFilters(filters []Filter) error {
	for i, filter := range filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}
	return nil
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
