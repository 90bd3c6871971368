package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lysyi3m/html-comb/app/feed"
)

// Status is the per-descriptor outcome of a run.
type Status struct {
	Name          string     `json:"name"`
	Title         string     `json:"title,omitempty"`
	Link          string     `json:"link,omitempty"`
	ItemCount     int        `json:"item_count"`
	Succeeded     bool       `json:"succeeded"`
	Output        string     `json:"output,omitempty"`
	Error         string     `json:"error,omitempty"`
	FailedSources []string   `json:"failed_sources,omitempty"`
	LatestItemAt  *time.Time `json:"latest_item_at,omitempty"`
	CheckedAt     time.Time  `json:"checked_at"`
	LastSuccess   *time.Time `json:"last_success,omitempty"`
}

// EmptyResultError means a descriptor produced no items at all.
type EmptyResultError struct {
	Feed     string
	Sources  int
	Failures []error
}

func (e *EmptyResultError) Error() string {
	msg := fmt.Sprintf("feed %s produced no items from %d source(s)", e.Feed, e.Sources)
	if len(e.Failures) > 0 {
		reasons := make([]string, 0, len(e.Failures))
		for _, err := range e.Failures {
			reasons = append(reasons, err.Error())
		}
		msg += ": " + strings.Join(reasons, "; ")
	}
	return msg
}

func (e *EmptyResultError) Unwrap() []error {
	return e.Failures
}

// StatusFile is the JSON status document read by dashboards.
type StatusFile struct {
	path   string
	writer *feed.Writer
}

func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path, writer: feed.NewWriter()}
}

func (f *StatusFile) Path() string {
	return f.path
}

// Load returns the stored statuses; a missing file is an empty list.
func (f *StatusFile) Load() ([]Status, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var statuses []Status
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("failed to parse status file: %w", err)
	}
	return statuses, nil
}

// Save merges statuses into the file. Feeds missing from this run keep their
// entry, and failed feeds keep their previous last success.
func (f *StatusFile) Save(statuses []Status) ([]Status, error) {
	previous, err := f.Load()
	if err != nil {
		slog.Warn("Replacing unreadable status file", "path", f.path, "error", err)
		previous = nil
	}

	merged := make(map[string]Status, len(previous)+len(statuses))
	for _, s := range previous {
		merged[s.Name] = s
	}

	for _, s := range statuses {
		if s.Succeeded {
			checked := s.CheckedAt
			s.LastSuccess = &checked
		} else if old, ok := merged[s.Name]; ok && s.LastSuccess == nil {
			s.LastSuccess = old.LastSuccess
		}
		merged[s.Name] = s
	}

	result := make([]Status, 0, len(merged))
	for _, s := range merged {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode status file: %w", err)
	}

	if err := f.writer.Write(f.path, string(data)+"\n"); err != nil {
		return nil, fmt.Errorf("failed to write status file: %w", err)
	}

	return result, nil
}
