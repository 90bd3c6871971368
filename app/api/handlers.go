package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/html-comb/app/database"
	"github.com/lysyi3m/html-comb/app/tasks"
)

const defaultRunLimit = 20

// NewHandler serves generated feeds from outputDir. Both repositories may be
// nil when run history is disabled.
func NewHandler(outputDir string, statusFile StatusReader, feedRepo database.FeedRepository,
	runRepo database.RunRepository, version string) *Handler {
	return &Handler{
		outputDir:  outputDir,
		statusFile: statusFile,
		feedRepo:   feedRepo,
		runRepo:    runRepo,
		version:    version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")
	name = strings.TrimSuffix(name, ".xml")
	if !validName(name) {
		c.Status(http.StatusBadRequest)
		return
	}

	path := filepath.Join(h.outputDir, name+".xml")
	status, _ := h.findStatus(name)
	if status != nil && status.Output != "" {
		path = status.Output
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("Feed file not found", "feed", name, "path", path)
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Feed file error", "feed", name, "path", path, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", info.ModTime().UTC().Format(time.RFC3339))
	if status != nil {
		c.Header("X-Feed-Items", strconv.Itoa(status.ItemCount))
	}

	c.File(path)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if h.feedRepo != nil {
		if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
			health["feeds"] = feedCount
		}
	}

	if statuses, err := h.statusFile.Load(); err == nil {
		failed := 0
		for _, s := range statuses {
			if !s.Succeeded {
				failed++
			}
		}
		health["tracked_feeds"] = len(statuses)
		health["failed_feeds"] = failed
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIGetStatus(c *gin.Context) {
	statuses, err := h.statusFile.Load()
	if err != nil {
		slog.Error("Status file error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status file"})
		return
	}

	if statuses == nil {
		statuses = []tasks.Status{}
	}

	response := gin.H{
		"feeds": statuses,
		"total": len(statuses),
	}

	if h.feedRepo != nil {
		feeds, err := h.feedRepo.GetFeeds()
		if err != nil {
			slog.Error("Database error", "operation", "get_feeds", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}

		history := make([]gin.H, 0, len(feeds))
		for _, feed := range feeds {
			history = append(history, feedSummary(feed))
		}
		response["database"] = history
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("name")
	if !validName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed name"})
		return
	}

	status, err := h.findStatus(name)
	if err != nil {
		slog.Error("Status file error", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status file"})
		return
	}

	details := gin.H{"name": name}
	if status != nil {
		details["status"] = status
	}

	var feed *database.Feed
	if h.feedRepo != nil {
		feed, err = h.feedRepo.GetFeed(name)
		if err != nil {
			slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if feed != nil {
			details["database"] = feedSummary(*feed)
		}
	}

	// A feed is known once it has a status entry or a database row.
	if status == nil && feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if h.runRepo != nil {
		limit := defaultRunLimit
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		runs, err := h.runRepo.GetRecentRuns(name, limit)
		if err != nil {
			slog.Error("Database error", "operation", "get_runs", "feed", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}

		history := make([]gin.H, 0, len(runs))
		for _, run := range runs {
			history = append(history, gin.H{
				"id":         run.ID,
				"started_at": run.StartedAt,
				"duration":   run.Duration.String(),
				"item_count": run.ItemCount,
				"succeeded":  run.Succeeded,
				"error":      run.Error,
			})
		}
		details["runs"] = history
	}

	c.JSON(http.StatusOK, details)
}

func feedSummary(feed database.Feed) gin.H {
	return gin.H{
		"name":            feed.Name,
		"title":           feed.Title,
		"output":          feed.Output,
		"item_count":      feed.ItemCount,
		"last_error":      feed.LastError,
		"last_checked_at": feed.LastCheckedAt,
		"last_success_at": feed.LastSuccessAt,
		"created_at":      feed.CreatedAt,
		"updated_at":      feed.UpdatedAt,
	}
}

func (h *Handler) findStatus(name string) (*tasks.Status, error) {
	statuses, err := h.statusFile.Load()
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		if statuses[i].Name == name {
			return &statuses[i], nil
		}
	}
	return nil, nil
}

// validName accepts descriptor names only, never paths.
func validName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, `/\`)
}
