package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

// MaxBodySize caps how much of a response body is read.
const MaxBodySize = 4 << 20

// Document is a fetched page, decoded to UTF-8.
type Document struct {
	URL         string // final URL after redirects
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	client *resty.Client
}

func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		SetDoNotParseResponse(true)

	return &Fetcher{client: client}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	start := time.Now()

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	body := resp.RawBody()
	if body == nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode(), Err: fmt.Errorf("empty response")}
	}
	defer body.Close()

	if !resp.IsSuccess() {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode(), Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}

	contentType := resp.Header().Get("Content-Type")

	reader, err := charset.NewReader(io.LimitReader(body, MaxBodySize), contentType)
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode(), Err: fmt.Errorf("failed to detect charset: %w", err)}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode(), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	finalURL := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	slog.Debug("Document fetched",
		"url", url,
		"status", resp.StatusCode(),
		"bytes", len(data),
		"duration", time.Since(start))

	return &Document{
		URL:         finalURL,
		ContentType: contentType,
		Body:        data,
		FetchedAt:   start,
	}, nil
}
