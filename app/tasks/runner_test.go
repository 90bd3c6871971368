package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/html-comb/app/database"
	"github.com/lysyi3m/html-comb/app/descriptor"
)

func newTestRepos(t *testing.T) (database.FeedRepository, database.RunRepository) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	return database.NewFeedRepository(db), database.NewRunRepository(db)
}

func TestRunnerRun(t *testing.T) {
	site := newSite(t, map[string]string{"/news": listPage})
	good := mustDescriptor(t, "alpha", fmt.Sprintf(`
feed:
  title: "Alpha"
url: %q
item_selector: "li"
`, site.URL+"/news"))
	broken := mustDescriptor(t, "beta", fmt.Sprintf(`
url: %q
item_selector: "li"
`, site.URL+"/gone"))

	result := &descriptor.LoadResult{
		Descriptors: []*descriptor.Descriptor{broken, good},
		Failures: []*descriptor.ConfigError{
			{Descriptor: "gamma", Key: "sources", Reason: "at least one source is required"},
		},
	}

	dir := t.TempDir()
	feedRepo, runRepo := newTestRepos(t)
	statusFile := NewStatusFile(filepath.Join(dir, "status.json"))
	runner := NewRunner(newTestPipeline(), Options{
		OutputDir: filepath.Join(dir, "feeds"),
		Now:       func() time.Time { return testNow },
	}, statusFile, feedRepo, runRepo)

	statuses, err := runner.Run(context.Background(), result)
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, "alpha", statuses[0].Name)
	assert.True(t, statuses[0].Succeeded)
	assert.Equal(t, 2, statuses[0].ItemCount)
	assert.Equal(t, filepath.Join(dir, "feeds", "alpha.xml"), statuses[0].Output)
	assert.FileExists(t, statuses[0].Output)

	assert.Equal(t, "beta", statuses[1].Name)
	assert.False(t, statuses[1].Succeeded)
	assert.Contains(t, statuses[1].Error, "404")

	assert.Equal(t, "gamma", statuses[2].Name)
	assert.False(t, statuses[2].Succeeded)
	assert.Contains(t, statuses[2].Error, "at least one source")

	saved, err := statusFile.Load()
	require.NoError(t, err)
	require.Len(t, saved, 3)
	require.NotNil(t, saved[0].LastSuccess)
	assert.True(t, saved[0].LastSuccess.Equal(testNow))
	assert.Nil(t, saved[1].LastSuccess)

	stored, err := feedRepo.GetFeed("alpha")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.ItemCount)
	assert.NotNil(t, stored.LastSuccessAt)

	runs, err := runRepo.GetRecentRuns("alpha", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Succeeded)

	rejected, err := feedRepo.GetFeed("gamma")
	require.NoError(t, err)
	require.NotNil(t, rejected)
	assert.Contains(t, rejected.LastError, "at least one source")

	runs, err = runRepo.GetRecentRuns("gamma", 10)
	require.NoError(t, err)
	assert.Empty(t, runs, "rejected descriptors never start a task")
}

func TestRunnerMaxItems(t *testing.T) {
	d := &descriptor.Descriptor{MaxItems: 50}

	tests := []struct {
		name    string
		ceiling int
		limit   int
		want    int
	}{
		{"no ceiling", 0, 50, 50},
		{"ceiling lower", 20, 50, 20},
		{"ceiling higher", 200, 50, 50},
		{"descriptor uncapped", 20, 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.MaxItems = tt.limit
			r := NewRunner(nil, Options{MaxItems: tt.ceiling}, nil, nil, nil)
			assert.Equal(t, tt.want, r.maxItems(d))
		})
	}
}

func TestRunnerOutputPath(t *testing.T) {
	r := NewRunner(nil, Options{OutputDir: "/srv/feeds"}, nil, nil, nil)

	assert.Equal(t, "/srv/feeds/nieuws.xml", r.outputPath(&descriptor.Descriptor{Name: "nieuws"}))
	assert.Equal(t, "/tmp/custom.xml", r.outputPath(&descriptor.Descriptor{Name: "nieuws", Output: "/tmp/custom.xml"}))
}

func TestRunnerStopsWhenCancelled(t *testing.T) {
	site := newSite(t, map[string]string{"/news": listPage})
	d := mustDescriptor(t, "alpha", fmt.Sprintf(`
url: %q
item_selector: "li"
`, site.URL+"/news"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(newTestPipeline(), Options{OutputDir: t.TempDir()}, nil, nil, nil)
	statuses, err := runner.Run(ctx, &descriptor.LoadResult{Descriptors: []*descriptor.Descriptor{d}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, statuses)
}
