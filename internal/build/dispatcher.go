package build

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-indexer/internal/database"
	"media-indexer/internal/metrics"
	"media-indexer/internal/scanner"
	"media-indexer/internal/settings"
)

var (
	// ErrBuildActive is returned by StartBuild while another build is
	// scanning, running or paused.
	ErrBuildActive = errors.New("a build is already in progress")
	// ErrInvalidState is returned by PauseBuild, ResumeBuild and CancelBuild
	// when the current state does not allow the transition.
	ErrInvalidState = errors.New("operation not allowed in the current build state")
)

const (
	// FlushSize is the number of buffered records written per batch.
	FlushSize = 100

	connectTimeout       = 30 * time.Second
	backpressureInterval = time.Second
)

// StoreProvider opens the stores a build writes to.
// database.Manager implements it.
type StoreProvider interface {
	Stores(ctx context.Context, indexPath, thumbnailPath string) (database.IndexStore, database.ThumbnailStore, error)
}

// Backpressure holds back task dispatch while IsPaused reports true.
// memory.Monitor implements it.
type Backpressure interface {
	IsPaused() bool
}

// scanFunc lists the files a build will process.
type scanFunc func(s settings.Settings, onProgress scanner.ProgressFunc, isCancelled func() bool) []string

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackpressure stops new tasks from being dispatched while b is
// paused. The build state does not change; dispatch is retried every
// second.
func WithBackpressure(b Backpressure) Option {
	return func(d *Dispatcher) {
		d.backpressure = b
	}
}

// Dispatcher runs builds, one at a time.
type Dispatcher struct {
	stores       StoreProvider
	processor    Processor
	backpressure Backpressure
	observers    observerSet
	scanFiles    scanFunc

	mu       sync.Mutex
	status   Status
	run      *buildRun
	starting bool // stores are being opened for a new build
}

// NewDispatcher returns an idle Dispatcher.
func NewDispatcher(stores StoreProvider, processor Processor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		stores:    stores,
		processor: processor,
		scanFiles: scanSources,
		status:    Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers obs for all following notifications. The returned
// function removes it.
func (d *Dispatcher) Subscribe(obs Observer) (unsubscribe func()) {
	return d.observers.add(obs)
}

// Status returns the most recently published status.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// StartBuild starts a full re-index with a copy of s. It returns
// ErrBuildActive while another build is in progress or its stores are
// still being opened, the settings validation error when paths or source
// directories are missing, or the error from opening the stores.
func (d *Dispatcher) StartBuild(s settings.Settings) error {
	s = s.Clone()

	d.mu.Lock()
	if d.starting || d.status.State.Active() {
		d.mu.Unlock()
		return ErrBuildActive
	}
	if err := s.Validate(); err != nil {
		d.mu.Unlock()
		return err
	}
	d.starting = true
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	index, thumbs, err := d.stores.Stores(ctx, s.IndexDBPath, s.ThumbnailDBPath())
	cancel()

	d.mu.Lock()
	d.starting = false
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to open stores: %w", err)
	}
	run := newBuildRun(d, s, index, thumbs)
	d.run = run
	d.status = run.status
	d.mu.Unlock()

	run.log.Info("Build started: %d source directories, %d workers", len(s.SourceDirs), s.Workers())
	metrics.BuildRunning.Set(1)

	go run.notify()
	run.emit()
	go run.loop()
	return nil
}

// PauseBuild stops dispatching new tasks. Tasks already on a worker
// finish and are counted. Only valid while running.
func (d *Dispatcher) PauseBuild() error {
	return d.send(cmdPause)
}

// ResumeBuild resumes dispatching. Only valid while paused.
func (d *Dispatcher) ResumeBuild() error {
	return d.send(cmdResume)
}

// CancelBuild stops the current build without waiting for in-flight
// tasks. Records not yet flushed are discarded. Valid while scanning,
// running or paused.
func (d *Dispatcher) CancelBuild() error {
	return d.send(cmdCancel)
}

// Wait blocks until the current build reaches a terminal state and its
// observers have seen every notification, or until ctx is done. It
// returns the latest status.
func (d *Dispatcher) Wait(ctx context.Context) (Status, error) {
	d.mu.Lock()
	run := d.run
	d.mu.Unlock()

	if run == nil {
		return d.Status(), nil
	}

	select {
	case <-run.done:
		return d.Status(), nil
	case <-ctx.Done():
		return d.Status(), ctx.Err()
	}
}

func (d *Dispatcher) send(kind commandKind) error {
	d.mu.Lock()
	run := d.run
	d.mu.Unlock()

	if run == nil {
		return ErrInvalidState
	}

	reply := make(chan error, 1)
	select {
	case run.cmds <- command{kind: kind, reply: reply}:
	case <-run.stopped:
		return ErrInvalidState
	}

	select {
	case err := <-reply:
		return err
	case <-run.stopped:
		select {
		case err := <-reply:
			return err
		default:
			return ErrInvalidState
		}
	}
}

// publish records s as the current status while run is the current build.
func (d *Dispatcher) publish(run *buildRun, s Status) {
	d.mu.Lock()
	if d.run == run {
		d.status = s
	}
	d.mu.Unlock()
}

func newBuildID() string {
	return uuid.NewString()
}
