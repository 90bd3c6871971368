package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseMultiSource(t *testing.T) {
	content := `
feed:
  id: "https://feeds.example.com/nieuws.xml"
  title: "Facilitair Nieuws"
  link: "https://feeds.example.com"
  description: "Nieuws uit de sector"
  language: "nl"
  max_items: 50
  timezone: "Europe/Amsterdam"
sources:
  - name: "Example"
    url: "https://example.com/news"
    item_selector: ["article.card", "li.news-item"]
    title_selector: "h2"
    link_selector: "a.more@data-href"
    date_selector: "time"
    date_attr: "datetime"
    date_format: "%d-%m-%Y"
    summary_selector: [".teaser", "p"]
    category_selector: ".tag"
    max_items: 5
  - url: "https://other.example.org/blog"
    base_url: "https://other.example.org"
    item_selector: "div.post"
    resolve_links: false
`
	d, err := Parse("nieuws", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, "nieuws", d.Name)
	assert.Equal(t, "Facilitair Nieuws", d.Feed.Title)
	assert.Equal(t, "nl", d.Feed.Language)
	assert.Equal(t, 50, d.MaxItems)
	require.NotNil(t, d.Location)
	assert.Equal(t, "Europe/Amsterdam", d.Location.String())

	require.Len(t, d.Sources, 2)

	first := d.Sources[0]
	assert.Equal(t, "Example", first.Name)
	assert.Equal(t, "https://example.com/news", first.BaseURL, "base URL should default to the document URL")
	assert.Equal(t, []string{"article.card", "li.news-item"}, first.Items.Strings())
	assert.Equal(t, []string{"a.more@data-href"}, first.Link.Strings())
	assert.Equal(t, []string{"time@datetime"}, first.Date.Strings())
	assert.Equal(t, "%d-%m-%Y", first.DateFormat)
	assert.Equal(t, 5, first.MaxItems)
	assert.True(t, first.ResolveLinks)
	assert.Equal(t, 1, first.MaxPages)

	names := make([]string, 0, len(first.Fields))
	for _, f := range first.Fields {
		names = append(names, f.Name)
		for _, sel := range f.Spec {
			assert.NotNil(t, sel.Match, "selectors should be compiled at load time")
		}
	}
	assert.Equal(t, []string{"title", "summary", "category"}, names)

	second := d.Sources[1]
	assert.Equal(t, "other.example.org", second.Name)
	assert.Equal(t, "https://other.example.org", second.BaseURL)
	assert.False(t, second.ResolveLinks)
	assert.Equal(t, []string{"div.post"}, second.Items.Strings())
}

func TestParseSingleSourceIsLifted(t *testing.T) {
	content := `
url: "https://example.com/nieuws"
item_selector: "li"
link_selector: "a"
date_selector: "time"
date_attr: "datetime"
feed:
  title: "Legacy"
`
	d, err := Parse("legacy", []byte(content))
	require.NoError(t, err)

	require.Len(t, d.Sources, 1)
	assert.Equal(t, "https://example.com/nieuws", d.Sources[0].URL)
	assert.Equal(t, []string{"a@href"}, d.Sources[0].Link.Strings(), "link selectors default to href")
	assert.Equal(t, "https://example.com/nieuws", d.Feed.Link, "feed link should default to the first source")
	assert.Equal(t, DefaultMaxItems, d.MaxItems)
}

func TestParseScraperBlockIsLifted(t *testing.T) {
	content := `
url: "https://example.com/events"
scraper:
  item_selector: ".event"
  title_selector: "h3"
  description_selector: ".intro"
feed:
  title: "Events"
limits:
  max_items: 5
`
	d, err := Parse("events", []byte(content))
	require.NoError(t, err)

	require.Len(t, d.Sources, 1)
	assert.Equal(t, "https://example.com/events", d.Sources[0].URL)
	assert.Equal(t, 5, d.MaxItems)
	require.Len(t, d.Sources[0].Fields, 2)
	assert.Equal(t, FieldDescription, d.Sources[0].Fields[1].Name)
}

func TestParseTopLevelList(t *testing.T) {
	content := `
- name: "A"
  url: "https://a.example.com"
  item_selector: "article"
- name: "B"
  url: "https://b.example.com"
  item_selector: "article"
  fallback_year_selector: ".year"
`
	d, err := Parse("sites-nieuws", []byte(content))
	require.NoError(t, err)

	require.Len(t, d.Sources, 2)
	assert.Equal(t, "sites-nieuws", d.Feed.Title)
	assert.Equal(t, []string{".year"}, d.Sources[1].DateFallback.Year.Strings())
	assert.True(t, d.Sources[0].DateFallback.IsZero())
}

func TestParseExtraFields(t *testing.T) {
	content := `
feed:
  field_map:
    teaser: summary
sources:
  - url: "https://example.com"
    item_selector: "li"
    fields:
      teaser: ".teaser"
      author: ".by"
`
	d, err := Parse("extra", []byte(content))
	require.NoError(t, err)

	require.Len(t, d.Sources[0].Fields, 2)
	assert.Equal(t, "author", d.Sources[0].Fields[0].Name)
	assert.Equal(t, "teaser", d.Sources[0].Fields[1].Name)
	assert.Equal(t, "summary", d.FieldMap["teaser"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{"scalar document", `"just a string"`, ""},
		{"empty document", ``, ""},
		{"no sources", "feed:\n  title: x\n", "sources"},
		{"missing url", "sources:\n  - item_selector: li\n", "sources[0].url"},
		{"missing item selector", "sources:\n  - url: https://example.com\n", "sources[0].item_selector"},
		{"missing url in legacy shape", "item_selector: li\n", "source.url"},
		{"invalid selector", "sources:\n  - url: https://example.com\n    item_selector: 'li[['\n", "sources[0].item_selector"},
		{"selector mapping", "sources:\n  - url: https://example.com\n    item_selector:\n      a: b\n", ""},
		{"negative max items", "feed:\n  max_items: -1\nsources:\n  - url: https://example.com\n    item_selector: li\n", "feed.max_items"},
		{"unknown timezone", "feed:\n  timezone: Mars/Base\nsources:\n  - url: https://example.com\n    item_selector: li\n", "feed.timezone"},
		{"bad filter", "filters:\n  - field: body\n    includes: [x]\nsources:\n  - url: https://example.com\n    item_selector: li\n", "filters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("broken", []byte(tt.content))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Equal(t, "broken", cfgErr.Descriptor)
			if tt.key != "" {
				assert.Equal(t, tt.key, cfgErr.Key)
				assert.Contains(t, cfgErr.Error(), tt.key)
			}
		})
	}
}

func TestLoadAllIsolatesBrokenDescriptors(t *testing.T) {
	dir := t.TempDir()

	writeDescriptor(t, dir, "b-good.yml", "url: https://example.com\nitem_selector: li\n")
	writeDescriptor(t, dir, "a-good.yaml", "url: https://example.org\nitem_selector: article\n")
	writeDescriptor(t, dir, "broken.yml", "feed:\n  title: nothing here\n")
	writeDescriptor(t, dir, "notes.txt", "ignored")

	result, err := NewLoader(dir).LoadAll()
	require.NoError(t, err)

	require.Len(t, result.Descriptors, 2)
	assert.Equal(t, "a-good", result.Descriptors[0].Name)
	assert.Equal(t, "b-good", result.Descriptors[1].Name)
	assert.Equal(t, filepath.Join(dir, "a-good.yaml"), result.Descriptors[0].Path)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "broken", result.Failures[0].Descriptor)
}

func TestLoadAllMissingDirectory(t *testing.T) {
	result, err := NewLoader(filepath.Join(t.TempDir(), "missing")).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, result.Descriptors)
	assert.Empty(t, result.Failures)
}

func TestSplitSelector(t *testing.T) {
	assert.Equal(t, Selector{CSS: "a.more", Attr: "href"}, splitSelector("a.more@href"))
	assert.Equal(t, Selector{CSS: `a[href*="@"]`}, splitSelector(`a[href*="@"]`))
	assert.Equal(t, Selector{CSS: "time", Attr: "data-date"}, splitSelector("time @data-date"))
}
