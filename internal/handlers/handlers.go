package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-indexer/internal/build"
	"media-indexer/internal/database"
	"media-indexer/internal/settings"
)

// BuildController is the part of build.Dispatcher the handlers drive.
type BuildController interface {
	Status() build.Status
	StartBuild(settings.Settings) error
	PauseBuild() error
	ResumeBuild() error
	CancelBuild() error
}

// Library gives read access to the stores of the last build.
// database.Manager implements it.
type Library interface {
	Index() (*database.IndexDB, error)
	Thumbnails() (*database.ThumbnailDB, error)
	Stats() (database.StorageStats, error)
}

type Handlers struct {
	builds    BuildController
	library   Library
	startTime time.Time

	// loadSettings returns the snapshot a build started over HTTP uses.
	loadSettings func() (settings.Settings, error)
}

func New(builds BuildController, library Library) *Handlers {
	return &Handlers{
		builds:       builds,
		library:      library,
		startTime:    time.Now(),
		loadSettings: settings.LoadFromEnv,
	}
}

// MetricsHandler returns the Prometheus metrics handler
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
