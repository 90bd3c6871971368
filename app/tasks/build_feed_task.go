package tasks

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/html-comb/app/dates"
	"github.com/lysyi3m/html-comb/app/descriptor"
	"github.com/lysyi3m/html-comb/app/feed"
	"github.com/lysyi3m/html-comb/app/selector"
)

var _ TaskInterface = (*BuildFeedTask)(nil)

// Pipeline bundles the components shared by every build task.
type Pipeline struct {
	Fetcher    DocumentFetcher
	Engine     *selector.Engine
	Normalizer *dates.Normalizer
	Filterer   *feed.Filterer
	Builder    *feed.Builder
	Generator  *feed.Generator
	Writer     *feed.Writer
	Extractor  *feed.ContentExtractor
	Pacer      *Pacer
}

// BuildFeedTask scrapes every source of one descriptor and writes its feed.
type BuildFeedTask struct {
	Task
	Descriptor *descriptor.Descriptor
	Output     string
	MaxItems   int

	pipeline *Pipeline
	now      time.Time
	status   Status
}

func NewBuildFeedTask(d *descriptor.Descriptor, output string, maxItems int, now time.Time, pipeline *Pipeline) *BuildFeedTask {
	return &BuildFeedTask{
		Task:       NewTask(TaskTypeBuildFeed, d.Name),
		Descriptor: d,
		Output:     output,
		MaxItems:   maxItems,
		pipeline:   pipeline,
		now:        now,
	}
}

func (t *BuildFeedTask) Status() Status {
	return t.status
}

func (t *BuildFeedTask) Execute(ctx context.Context) error {
	d := t.Descriptor
	t.status = Status{
		Name:      d.Name,
		Title:     d.Feed.Title,
		Link:      d.Feed.Link,
		Output:    t.Output,
		CheckedAt: t.now,
	}

	normalizer := t.pipeline.Normalizer.In(d.Location)
	assembler := feed.NewAssembler(d.FieldMap, d.TitleSuffixSource)

	var items []feed.Item
	var failures []error

	for _, source := range d.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		sourceItems, err := t.scrapeSource(ctx, source, normalizer, assembler)
		if err != nil {
			slog.Warn("Source failed", "feed", d.Name, "source", source.Name, "url", source.URL, "error", err)
			failures = append(failures, fmt.Errorf("source %s: %w", source.Name, err))
			t.status.FailedSources = append(t.status.FailedSources, source.Name)
			continue
		}

		items = append(items, sourceItems...)
	}

	items = t.pipeline.Filterer.Run(items, d.Filters)
	if len(items) == 0 {
		return &EmptyResultError{Feed: d.Name, Sources: len(d.Sources), Failures: failures}
	}

	built := t.pipeline.Builder.Run(items, feed.Metadata{
		ID:          d.Feed.ID,
		Title:       d.Feed.Title,
		Link:        d.Feed.Link,
		Description: d.Feed.Description,
		Language:    d.Feed.Language,
	}, t.MaxItems, t.now)

	rss, err := t.pipeline.Generator.Run(built)
	if err != nil {
		return fmt.Errorf("failed to generate feed: %w", err)
	}

	if err := t.pipeline.Writer.Write(t.Output, rss); err != nil {
		return err
	}

	t.status.ItemCount = len(built.Items)
	for _, item := range built.Items {
		if item.Published != nil && (t.status.LatestItemAt == nil || item.Published.After(*t.status.LatestItemAt)) {
			t.status.LatestItemAt = item.Published
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d sources failed: %w", len(failures), len(d.Sources), errors.Join(failures...))
	}

	return nil
}

func (t *BuildFeedTask) scrapeSource(ctx context.Context, source descriptor.Source, normalizer *dates.Normalizer, assembler *feed.Assembler) ([]feed.Item, error) {
	limit := cmp.Or(source.MaxItems, t.MaxItems)
	maxPages := max(source.MaxPages, 1)
	visited := make(map[string]bool, maxPages)

	var items []feed.Item
	matched := 0
	pageURL := source.URL

	for page := 1; page <= maxPages && pageURL != "" && !visited[pageURL]; page++ {
		visited[pageURL] = true

		if err := t.pipeline.Pacer.Wait(ctx); err != nil {
			return nil, err
		}

		doc, err := t.pipeline.Fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			slog.Warn("Next page failed, keeping earlier pages", "feed", t.FeedName, "source", source.Name, "page", page, "error", err)
			break
		}

		html, err := t.pipeline.Engine.Parse(bytes.NewReader(doc.Body))
		if err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}

		// Relative links resolve against the fetched page unless a base is configured.
		base := source.BaseURL
		if base == source.URL {
			base = doc.URL
		}

		remaining := 0
		if limit > 0 {
			remaining = limit - len(items)
		}

		elements := t.pipeline.Engine.Items(html, source.Items, remaining)
		matched += len(elements)

		for _, el := range elements {
			if item, ok := t.extractItem(ctx, el, source, base, normalizer, assembler); ok {
				items = append(items, item)
			}
		}

		if limit > 0 && len(items) >= limit {
			break
		}

		next, ok := t.pipeline.Engine.NextPage(html, source.NextPage, doc.URL)
		if !ok {
			break
		}
		pageURL = next
	}

	if matched == 0 {
		return nil, &selector.ParseError{Field: "item", Selectors: source.Items.Strings(), Err: selector.ErrNoMatch}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("none of %d matched elements had a link or title", matched)
	}

	slog.Debug("Source scraped", "feed", t.FeedName, "source", source.Name, "elements", matched, "items", len(items))

	return items, nil
}

func (t *BuildFeedTask) extractItem(ctx context.Context, el *selector.Element, source descriptor.Source, base string, normalizer *dates.Normalizer, assembler *feed.Assembler) (feed.Item, bool) {
	raw := feed.RawRecord{
		Fields:     make(map[string]string, len(source.Fields)+1),
		SourceName: source.Name,
	}

	for _, field := range source.Fields {
		value, err := el.Text(field.Name, field.Spec)
		if err != nil {
			slog.Debug("Field not extracted", "feed", t.FeedName, "source", source.Name, "error", err)
			continue
		}
		raw.Fields[field.Name] = value
	}

	link, linkText, err := el.Link(source.Link, base, source.ResolveLinks)
	if err != nil {
		slog.Debug("Link not extracted", "feed", t.FeedName, "source", source.Name, "error", err)
	} else {
		raw.Fields[descriptor.FieldLink] = link
	}
	raw.LinkText = linkText

	var published *time.Time
	at, err := normalizer.Normalize(el.DateInput(source.Date, source.DateFallback, source.DateFormat))
	switch {
	case err == nil:
		published = &at
	case errors.Is(err, dates.ErrNoDate):
	default:
		slog.Debug("Date not parsed", "feed", t.FeedName, "source", source.Name, "error", err)
	}

	if source.ExtractSummary && link != "" && !assembler.HasSummary(raw) {
		summary, err := t.extractSummary(ctx, link)
		if err != nil {
			slog.Debug("Summary not extracted", "feed", t.FeedName, "link", link, "error", err)
		} else {
			raw.Fields[descriptor.FieldSummary] = summary
		}
	}

	return assembler.Run(raw, published)
}

func (t *BuildFeedTask) extractSummary(ctx context.Context, link string) (string, error) {
	if err := t.pipeline.Pacer.Wait(ctx); err != nil {
		return "", err
	}

	doc, err := t.pipeline.Fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}

	return t.pipeline.Extractor.Run(doc.Body, doc.URL)
}
