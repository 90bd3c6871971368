package tasks

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/lysyi3m/html-comb/app/database"
	"github.com/lysyi3m/html-comb/app/descriptor"
)

const DefaultTaskTimeout = 5 * time.Minute

type Options struct {
	OutputDir   string
	MaxItems    int // hard ceiling over descriptor limits, 0 means none
	TaskTimeout time.Duration
	Now         func() time.Time
}

// Runner builds descriptors one after another and records the outcomes.
type Runner struct {
	pipeline   *Pipeline
	opts       Options
	statusFile *StatusFile
	feedRepo   database.FeedRepository
	runRepo    database.RunRepository
}

// NewRunner wires a runner. statusFile and both repositories are optional.
func NewRunner(pipeline *Pipeline, opts Options, statusFile *StatusFile,
	feedRepo database.FeedRepository, runRepo database.RunRepository) *Runner {
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		pipeline:   pipeline,
		opts:       opts,
		statusFile: statusFile,
		feedRepo:   feedRepo,
		runRepo:    runRepo,
	}
}

// Run returns one status per descriptor, rejected ones included, sorted by name.
func (r *Runner) Run(ctx context.Context, result *descriptor.LoadResult) ([]Status, error) {
	now := r.opts.Now().UTC()
	statuses := make([]Status, 0, len(result.Descriptors)+len(result.Failures))

	for _, cfgErr := range result.Failures {
		status := Status{Name: cfgErr.Descriptor, Error: cfgErr.Error(), CheckedAt: now}
		slog.Error("Descriptor rejected", "feed", cfgErr.Descriptor, "error", cfgErr)
		r.record(nil, status)
		statuses = append(statuses, status)
	}

	slog.Debug("Building feeds", "count", len(result.Descriptors))

	for _, d := range result.Descriptors {
		if err := ctx.Err(); err != nil {
			slog.Warn("Run cancelled, skipping remaining feeds", "error", err)
			break
		}

		task := NewBuildFeedTask(d, r.outputPath(d), r.maxItems(d), now, r.pipeline)
		statuses = append(statuses, r.executeTask(ctx, task))
	}

	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	if r.statusFile != nil {
		if _, err := r.statusFile.Save(statuses); err != nil {
			return statuses, err
		}
	}

	return statuses, ctx.Err()
}

func (r *Runner) executeTask(ctx context.Context, task TaskInterface) Status {
	task.Start()

	taskCtx, cancel := context.WithTimeout(ctx, r.opts.TaskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	status := task.Status()
	status.Succeeded = err == nil
	if err != nil {
		status.Error = err.Error()
		slog.Error("Task failed", "type", string(task.GetType()), "id", task.GetID(), "feed", task.GetFeedName(),
			"duration", task.GetDuration().String(), "items", status.ItemCount, "error", err)
	} else {
		slog.Info("Task completed", "type", string(task.GetType()), "feed", task.GetFeedName(),
			"duration", task.GetDuration().String(), "items", status.ItemCount)
	}

	r.record(task, status)

	return status
}

func (r *Runner) record(task TaskInterface, status Status) {
	if r.feedRepo == nil {
		return
	}

	err := r.feedRepo.UpsertFeedStatus(database.FeedStatus{
		Name:      status.Name,
		Title:     status.Title,
		Output:    status.Output,
		ItemCount: status.ItemCount,
		Succeeded: status.Succeeded,
		Error:     status.Error,
		CheckedAt: status.CheckedAt,
	})
	if err != nil {
		slog.Warn("Failed to store feed status", "feed", status.Name, "error", err)
		return
	}

	if r.runRepo == nil || task == nil {
		return
	}

	err = r.runRepo.RecordRun(database.Run{
		ID:        task.GetID(),
		FeedName:  status.Name,
		StartedAt: task.GetStartedAt(),
		Duration:  task.GetDuration(),
		ItemCount: status.ItemCount,
		Succeeded: status.Succeeded,
		Error:     status.Error,
	})
	if err != nil {
		slog.Warn("Failed to record run", "feed", status.Name, "id", task.GetID(), "error", err)
	}
}

func (r *Runner) outputPath(d *descriptor.Descriptor) string {
	if d.Output != "" {
		return d.Output
	}
	return filepath.Join(r.opts.OutputDir, d.Name+".xml")
}

func (r *Runner) maxItems(d *descriptor.Descriptor) int {
	switch {
	case r.opts.MaxItems <= 0:
		return d.MaxItems
	case d.MaxItems <= 0:
		return r.opts.MaxItems
	default:
		return min(d.MaxItems, r.opts.MaxItems)
	}
}
