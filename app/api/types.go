package api

import (
	"github.com/lysyi3m/html-comb/app/database"
	"github.com/lysyi3m/html-comb/app/tasks"
)

type StatusReader interface {
	Load() ([]tasks.Status, error)
}

var _ StatusReader = (*tasks.StatusFile)(nil)

type Handler struct {
	outputDir  string
	statusFile StatusReader
	feedRepo   database.FeedRepository
	runRepo    database.RunRepository
	version    string
}
