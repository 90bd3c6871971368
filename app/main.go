package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lysyi3m/html-comb/app/api"
	"github.com/lysyi3m/html-comb/app/cfg"
	"github.com/lysyi3m/html-comb/app/database"
	"github.com/lysyi3m/html-comb/app/dates"
	"github.com/lysyi3m/html-comb/app/descriptor"
	"github.com/lysyi3m/html-comb/app/feed"
	"github.com/lysyi3m/html-comb/app/fetcher"
	"github.com/lysyi3m/html-comb/app/selector"
	"github.com/lysyi3m/html-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var code int
	switch appCfg.Command {
	case cfg.CommandServe:
		code = serve(ctx, appCfg)
	case cfg.CommandStatus:
		code = status(appCfg, os.Stdout)
	default:
		code = run(ctx, appCfg)
	}

	stop()
	os.Exit(code)
}

func run(ctx context.Context, appCfg *cfg.Cfg) int {
	slog.Info("Starting HTML Comb run",
		"version", appCfg.Version,
		"descriptors_dir", appCfg.DescriptorsDir,
		"output_dir", appCfg.OutputDir,
		"timezone", appCfg.Location.String())

	result, err := descriptor.NewLoader(appCfg.DescriptorsDir).LoadAll()
	if err != nil {
		slog.Error("Failed to load descriptors", "error", err)
		return 1
	}

	slog.Info("Descriptors loaded", "valid", len(result.Descriptors), "rejected", len(result.Failures))

	db, feedRepo, runRepo := openHistory(appCfg.DBPath)
	if db != nil {
		defer db.Close()
	}

	pipeline := &tasks.Pipeline{
		Fetcher:    fetcher.NewFetcher(appCfg.UserAgent, appCfg.Timeout),
		Engine:     selector.NewEngine(),
		Normalizer: dates.NewNormalizer(appCfg.Location),
		Filterer:   feed.NewFilterer(),
		Builder:    feed.NewBuilder(),
		Generator:  feed.NewGenerator(appCfg.Version),
		Writer:     feed.NewWriter(),
		Extractor:  feed.NewContentExtractor(),
		Pacer:      tasks.NewPacer(appCfg.RequestDelay),
	}

	runner := tasks.NewRunner(pipeline, tasks.Options{
		OutputDir: appCfg.OutputDir,
		MaxItems:  appCfg.MaxItems,
	}, tasks.NewStatusFile(appCfg.StatusFile), feedRepo, runRepo)

	statuses, err := runner.Run(ctx, result)

	failed := 0
	for _, s := range statuses {
		if !s.Succeeded {
			failed++
		}
	}

	slog.Info("Run finished", "feeds", len(statuses), "failed", failed, "status_file", appCfg.StatusFile)

	if err != nil {
		slog.Error("Run incomplete", "error", err)
		return 1
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func serve(ctx context.Context, appCfg *cfg.Cfg) int {
	db, feedRepo, runRepo := openHistory(appCfg.DBPath)
	if db != nil {
		defer db.Close()
	}

	handler := api.NewHandler(appCfg.OutputDir, tasks.NewStatusFile(appCfg.StatusFile), feedRepo, runRepo, appCfg.Version)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "output_dir", appCfg.OutputDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server")
	case err := <-serverErr:
		slog.Error("HTTP server error", "error", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		code = 1
	}

	return code
}

// status prints the last recorded outcome of every feed next to what a feed
// reader currently sees in the written file.
func status(appCfg *cfg.Cfg, out io.Writer) int {
	statuses, err := tasks.NewStatusFile(appCfg.StatusFile).Load()
	if err != nil {
		slog.Error("Failed to read status file", "path", appCfg.StatusFile, "error", err)
		return 1
	}
	if len(statuses) == 0 {
		fmt.Fprintf(out, "No feeds recorded in %s\n", appCfg.StatusFile)
		return 0
	}

	inspector := feed.NewInspector()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEED\tSTATUS\tITEMS\tLATEST\tLAST SUCCESS\tERROR")

	failed := 0
	for _, s := range statuses {
		state := "ok"
		if !s.Succeeded {
			state = "failed"
			failed++
		}

		items, latest := "-", "-"
		if s.Output != "" {
			if inspection, err := inspector.Run(s.Output); err != nil {
				slog.Debug("Feed file not readable", "feed", s.Name, "path", s.Output, "error", err)
			} else {
				items = fmt.Sprint(inspection.ItemCount)
				if inspection.Latest != nil {
					latest = inspection.Latest.Format(time.DateOnly)
				}
			}
		}

		lastSuccess := "never"
		if s.LastSuccess != nil {
			lastSuccess = s.LastSuccess.Format(time.DateTime)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Name, state, items, latest, lastSuccess, s.Error)
	}
	w.Flush()

	if failed > 0 {
		return 1
	}
	return 0
}

// openHistory opens the run history database. History is optional; any
// failure is logged and the run continues without it.
func openHistory(path string) (*database.DB, database.FeedRepository, database.RunRepository) {
	if path == "" {
		return nil, nil, nil
	}

	db, err := database.NewConnection(path)
	if err != nil {
		slog.Warn("Run history disabled", "path", path, "error", err)
		return nil, nil, nil
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Warn("Run history disabled", "path", path, "error", err)
		db.Close()
		return nil, nil, nil
	}

	slog.Debug("Run history ready", "path", path, "version", version, "dirty", dirty)

	return db, database.NewFeedRepository(db), database.NewRunRepository(db)
}
