package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"media-indexer/internal/build"
	"media-indexer/internal/database"
	"media-indexer/internal/filesystem"
	"media-indexer/internal/handlers"
	"media-indexer/internal/logging"
	"media-indexer/internal/media"
	"media-indexer/internal/memory"
	"media-indexer/internal/metrics"
	"media-indexer/internal/middleware"
	"media-indexer/internal/settings"
	"media-indexer/internal/startup"
)

const (
	shutdownTimeout  = 30 * time.Second
	collectInterval  = time.Minute
	progressLogEvery = 500
)

func main() {
	startTime := time.Now()

	// Must run before significant allocations
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}
	s := config.Settings

	startup.LogMemoryConfig(startup.MemoryConfig{
		Configured:     memResult.Configured,
		Source:         memResult.Source,
		ContainerLimit: memResult.ContainerLimit,
		GoMemLimit:     memResult.GoMemLimit,
		Ratio:          memResult.Ratio,
	})

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumeMap(s)))

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips initialization failed: %v", err)
	}
	defer media.ShutdownVips()
	startup.LogMediaToolsInit(media.IsVipsAvailable())

	manager := database.NewManager()
	defer func() {
		if err := manager.Close(); err != nil {
			logging.Warn("Failed to close stores: %v", err)
		}
	}()

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	dispatcher := build.NewDispatcher(
		manager,
		build.NewMediaProcessor(media.NewThumbnailer()),
		dispatcherOptions(monitor)...,
	)
	dispatcher.Subscribe(progressLogger())

	collector := metrics.NewCollector(manager, collectInterval)
	collector.Start()
	defer collector.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			startup.LogShutdownInitiated(sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if config.MetricsEnabled {
		h := handlers.New(dispatcher, manager)
		router := setupRouter(h)
		startup.LogHTTPRoutes(router)

		srv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           middleware.Logger(middleware.DefaultLoggingConfig())(router),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	storesStart := time.Now()
	if err := dispatcher.StartBuild(s); err != nil {
		logging.Fatal("Failed to start build: %v", err)
	}
	startup.LogStoresInit(s.IndexDBPath, s.ThumbnailDBPath(), time.Since(storesStart))

	startup.LogServerStarted(startup.ServerConfig{
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	var final build.Status
	g.Go(func() error {
		final = waitForBuild(gctx, dispatcher)
		startup.LogBuildSummary(buildSummary(final))

		// The status API keeps serving the finished index until a signal.
		if srv == nil {
			cancel()
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv)
	})

	if err := g.Wait(); err != nil {
		logging.Error("Shutdown with error: %v", err)
		os.Exit(1)
	}
	startup.LogShutdownComplete()

	if final.State == build.StateFailed {
		os.Exit(1)
	}
}

// waitForBuild waits for the build to end. If ctx ends first the build is
// cancelled and waited for again.
func waitForBuild(ctx context.Context, d *build.Dispatcher) build.Status {
	status, err := d.Wait(ctx)
	if err == nil {
		return status
	}

	startup.LogShutdownStep("Cancelling build")
	if err := d.CancelBuild(); err != nil && !errors.Is(err, build.ErrInvalidState) {
		logging.Warn("Cancel failed: %v", err)
	}

	wctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	status, err = d.Wait(wctx)
	if err != nil {
		logging.Warn("Build did not stop within %v", shutdownTimeout)
		return status
	}
	startup.LogShutdownStepComplete("Build stopped")
	return status
}

func shutdown(srv *http.Server) error {
	if srv == nil {
		return nil
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
		return nil
	}
	startup.LogShutdownStepComplete("HTTP server stopped")
	return nil
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	buildAPI := api.PathPrefix("/build").Subrouter()
	buildAPI.HandleFunc("/status", h.GetBuildStatus).Methods("GET")
	buildAPI.HandleFunc("/start", h.StartBuild).Methods("POST")
	buildAPI.HandleFunc("/pause", h.PauseBuild).Methods("POST")
	buildAPI.HandleFunc("/resume", h.ResumeBuild).Methods("POST")
	buildAPI.HandleFunc("/cancel", h.CancelBuild).Methods("POST")
	buildAPI.HandleFunc("/errors", h.GetBuildErrors).Methods("GET")
	buildAPI.HandleFunc("/errors", h.ClearBuildErrors).Methods("DELETE")

	api.HandleFunc("/media", h.QueryMedia).Methods("GET")
	api.HandleFunc("/media/{id:[0-9]+}/favorite", h.SetFavorite).Methods("PUT")
	api.HandleFunc("/favorites", h.ClearFavorites).Methods("DELETE")
	api.HandleFunc("/thumbnails", h.ClearThumbnails).Methods("DELETE")
	api.HandleFunc("/thumbnails/{key}", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/index", h.ClearIndex).Methods("DELETE")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return r
}

// progressLogger logs state changes and every progressLogEvery processed
// files.
func progressLogger() build.Observer {
	var (
		lastState build.State
		lastLog   int
	)
	return build.ObserverFuncs{
		Status: func(s build.Status) {
			if s.State != lastState {
				lastState = s.State
				logging.Debug("Build %s is %s", s.BuildID, s.State)
			}
			if s.State == build.StateRunning && s.Processed-lastLog >= progressLogEvery {
				lastLog = s.Processed
				logging.Info("Progress: %d/%d processed (%d failed)", s.Processed, s.Total, s.Failed)
			}
		},
		Fatal: func(message string) {
			logging.Error("Build aborted: %s", message)
		},
	}
}

// dispatcherOptions holds builds back under memory pressure when the
// monitor has a limit to measure against.
func dispatcherOptions(monitor *memory.Monitor) []build.Option {
	if !monitor.Enabled() {
		return nil
	}
	return []build.Option{build.WithBackpressure(monitor)}
}

// volumeMap labels the configured directories for filesystem metrics.
func volumeMap(s settings.Settings) map[string][]string {
	volumes := map[string][]string{
		"source": s.SourceDirs,
	}
	if s.IndexDBPath != "" {
		volumes["database"] = []string{filepath.Dir(s.IndexDBPath)}
	}
	if s.ThumbnailDir != "" {
		volumes["thumbnails"] = []string{s.ThumbnailDir}
	}
	if s.ThumbnailDir != "" || s.TmpDir != "" {
		volumes["tmp"] = []string{s.ScratchDir()}
	}
	return volumes
}

func buildSummary(s build.Status) startup.BuildSummary {
	var duration time.Duration
	if !s.EndedAt.IsZero() {
		duration = s.EndedAt.Sub(s.StartedAt)
	}
	return startup.BuildSummary{
		BuildID:   s.BuildID,
		State:     string(s.State),
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Duration:  duration,
	}
}
