package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// Write replaces path atomically: the content goes to a temp file in the same
// directory which is renamed over path. No partial file is left on failure.
func (w *Writer) Write(path string, content string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.WriteString(content); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync feed: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close feed: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set feed permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move feed into place: %w", err)
	}

	slog.Debug("Feed written", "path", path, "bytes", len(content))

	return nil
}
