package build

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"media-indexer/internal/database"
	"media-indexer/internal/logging"
	"media-indexer/internal/metrics"
	"media-indexer/internal/scanner"
	"media-indexer/internal/settings"
)

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdCancel
)

type command struct {
	kind  commandKind
	reply chan error
}

type scanProgress struct {
	dir  string
	name string
}

type scanOutcome struct {
	files []string
	err   error
}

// buildRun is the state of one build. Everything except cmds, stopped,
// done, notes and cancelled is owned by the loop goroutine.
type buildRun struct {
	d        *Dispatcher
	id       string
	log      logging.Logger
	settings settings.Settings
	index    database.IndexStore
	thumbs   database.ThumbnailStore

	cmds      chan command
	stopped   chan struct{} // closed when loop returns
	done      chan struct{} // closed when every notification is delivered
	notes     *notifyQueue
	cancelled atomic.Bool

	ctx         context.Context
	cancelCtx   context.CancelFunc
	stopWorkers context.CancelFunc

	status  Status
	queue   []Task
	slots   []workerSlot
	results chan workerResult
	buffer  []database.MediaRecord
}

func newBuildRun(d *Dispatcher, s settings.Settings, index database.IndexStore, thumbs database.ThumbnailStore) *buildRun {
	id := newBuildID()
	ctx, cancel := context.WithCancel(context.Background())

	return &buildRun{
		d:         d,
		id:        id,
		log:       logging.With("build " + id[:8]),
		settings:  s,
		index:     index,
		thumbs:    thumbs,
		cmds:      make(chan command),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
		notes:     newNotifyQueue(),
		ctx:       ctx,
		cancelCtx: cancel,
		status: Status{
			BuildID:   id,
			State:     StateScanning,
			StartedAt: time.Now(),
		},
	}
}

// notify delivers the run's notifications until loop has returned and
// the queue is empty.
func (r *buildRun) notify() {
	defer close(r.done)
	r.notes.deliver(r.log)
}

func (r *buildRun) loop() {
	defer r.notes.close()
	defer close(r.stopped)
	defer r.cancelCtx()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Build panic: %v\n%s", p, debug.Stack())
			r.fail(fmt.Sprintf("internal error: %v", p))
		}
	}()

	progress := make(chan scanProgress, 64)
	scanned := make(chan scanOutcome, 1)
	go r.scan(progress, scanned)

	var tick <-chan time.Time
	if r.d.backpressure != nil {
		ticker := time.NewTicker(backpressureInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for !r.status.State.Terminal() {
		select {
		case p := <-progress:
			r.status.CurrentDirectory = p.dir
			r.status.CurrentFile = p.name
			r.emit()

		case out := <-scanned:
			// Every progress send completed before the outcome was sent.
			progress = nil
			if out.err != nil {
				r.fail(out.err.Error())
				continue
			}
			r.startRunning(out.files)

		case res := <-r.results:
			r.handleResult(res)

		case cmd := <-r.cmds:
			cmd.reply <- r.execute(cmd.kind)

		case <-tick:
			r.dispatch()
		}
	}
}

func (r *buildRun) scan(progress chan<- scanProgress, out chan<- scanOutcome) {
	defer func() {
		if p := recover(); p != nil {
			out <- scanOutcome{err: fmt.Errorf("scanner panic: %v", p)}
		}
	}()

	start := time.Now()
	files := r.d.scanFiles(r.settings, func(dir, name string) {
		select {
		case progress <- scanProgress{dir: dir, name: name}:
		case <-r.stopped:
		}
	}, r.cancelled.Load)

	if !r.cancelled.Load() {
		r.log.Info("Scan found %d files in %v", len(files), time.Since(start).Round(time.Millisecond))
	}
	out <- scanOutcome{files: files}
}

// startRunning clears the stores, queues one task per scanned file and
// starts the worker pool.
func (r *buildRun) startRunning(files []string) {
	if err := r.index.ClearMediaAndErrors(r.ctx); err != nil {
		r.fail(fmt.Sprintf("failed to clear index: %v", err))
		return
	}
	if err := r.thumbs.ClearThumbnails(r.ctx); err != nil {
		r.fail(fmt.Sprintf("failed to clear thumbnails: %v", err))
		return
	}

	tmpDir := r.settings.ScratchDir()
	r.queue = make([]Task, 0, len(files))
	for _, f := range files {
		r.queue = append(r.queue, Task{
			FilePath:           f,
			TmpDir:             tmpDir,
			ThumbnailSize:      r.settings.ThumbnailSize,
			ThumbnailQuality:   r.settings.ThumbnailQuality,
			IgnoreLocationData: r.settings.IgnoreLocationData,
		})
	}

	r.status.State = StateRunning
	r.status.Total = len(r.queue)
	r.status.CurrentDirectory = ""
	r.status.CurrentFile = ""
	r.emit()

	r.spawnWorkers(r.settings.Workers())
	r.dispatch()
}

func (r *buildRun) spawnWorkers(n int) {
	ctx, stop := context.WithCancel(r.ctx)
	r.stopWorkers = stop
	r.results = make(chan workerResult, n)
	r.slots = make([]workerSlot, n)
	for i := range r.slots {
		r.slots[i].handle = startWorker(ctx, i, r.d.processor, r.results)
	}
	r.log.Debug("Started %d workers", n)
}

func (r *buildRun) terminateWorkers() {
	if r.stopWorkers != nil {
		r.stopWorkers()
		r.stopWorkers = nil
	}
	r.slots = nil
	r.results = nil
}

// dispatch hands queued tasks to idle slots in queue order, then checks
// whether the build is finished.
func (r *buildRun) dispatch() {
	if r.status.State != StateRunning {
		return
	}

	if bp := r.d.backpressure; bp != nil && bp.IsPaused() {
		r.log.Debug("Dispatch held back by memory pressure, %d tasks queued", len(r.queue))
	} else {
		for i := range r.slots {
			slot := &r.slots[i]
			if slot.busy {
				continue
			}
			if len(r.queue) == 0 {
				break
			}

			task := r.queue[0]
			r.queue[0] = Task{}
			r.queue = r.queue[1:]

			slot.busy = true
			slot.task = &task
			r.status.CurrentDirectory = filepath.Dir(task.FilePath)
			r.status.CurrentFile = task.FilePath
			r.emit()

			// The slot was idle, so its one-task buffer is empty.
			slot.handle.tasks <- task
		}
	}

	r.checkDone()
}

func (r *buildRun) checkDone() {
	if len(r.queue) > 0 {
		return
	}
	for _, slot := range r.slots {
		if slot.busy {
			return
		}
	}

	if err := r.flush(); err != nil {
		r.fail(err.Error())
		return
	}
	r.terminateWorkers()
	r.finish(StateCompleted)
}

func (r *buildRun) handleResult(wr workerResult) {
	if wr.slot < 0 || wr.slot >= len(r.slots) || !r.slots[wr.slot].busy {
		r.log.Warn("Discarding result from idle worker %d", wr.slot)
		return
	}

	slot := &r.slots[wr.slot]
	task := slot.task
	slot.busy = false
	slot.task = nil

	r.status.Processed++
	res := wr.result

	switch {
	case res.OK && res.Record != nil && res.ThumbnailKey != "" && len(res.ThumbnailBytes) > 0:
		if err := r.thumbs.UpsertThumbnail(r.ctx, res.ThumbnailKey, res.ThumbnailBytes); err != nil {
			if !r.recordFailure(task.FilePath, database.StageDB, fmt.Sprintf("failed to store thumbnail: %v", err)) {
				return
			}
			break
		}

		r.status.Succeeded++
		metrics.BuildFilesTotal.WithLabelValues("succeeded").Inc()
		r.buffer = append(r.buffer, *res.Record)
		if len(r.buffer) >= FlushSize {
			if err := r.flush(); err != nil {
				r.fail(err.Error())
				return
			}
		}

	case res.OK:
		if !r.recordFailure(task.FilePath, database.StageThumbnail, "thumbnail result is missing image data") {
			return
		}

	default:
		stage := res.ErrorStage
		if stage == "" {
			stage = database.StageMetadata
		}
		if !r.recordFailure(task.FilePath, stage, res.ErrorMessage) {
			return
		}
	}

	r.emit()
	r.dispatch()
}

// recordFailure counts a failed file and persists its error. It reports
// false when the error could not be stored and the build has failed.
func (r *buildRun) recordFailure(path string, stage database.Stage, message string) bool {
	r.status.Failed++
	metrics.BuildFilesTotal.WithLabelValues("failed").Inc()
	metrics.BuildErrorsTotal.WithLabelValues(string(stage)).Inc()
	r.log.Warn("%s failed at %s stage: %s", path, stage, message)

	item, err := r.index.AddBuildError(r.ctx, database.BuildError{
		BuildID:   r.id,
		FilePath:  path,
		Stage:     stage,
		Message:   message,
		CreatedAt: time.Now(),
	})
	if err != nil {
		r.fail(fmt.Sprintf("failed to record build error: %v", err))
		return false
	}

	r.notes.push(func() { r.d.observers.errorItem(item) })
	return true
}

func (r *buildRun) flush() error {
	n := len(r.buffer)
	if n == 0 {
		return nil
	}

	start := time.Now()
	err := r.index.SaveMediaBatch(r.ctx, r.buffer)
	metrics.BuildFlushSize.Observe(float64(n))
	if err != nil {
		metrics.BuildFlushesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to flush %d records: %w", n, err)
	}
	metrics.BuildFlushesTotal.WithLabelValues("success").Inc()

	r.log.Debug("Flushed %d records in %v", n, time.Since(start))
	r.buffer = make([]database.MediaRecord, 0, FlushSize)
	return nil
}

func (r *buildRun) execute(kind commandKind) error {
	switch kind {
	case cmdPause:
		if r.status.State != StateRunning {
			return ErrInvalidState
		}
		r.status.State = StatePaused
		metrics.BuildPaused.Set(1)
		r.log.Info("Build paused")
		r.emit()

	case cmdResume:
		if r.status.State != StatePaused {
			return ErrInvalidState
		}
		r.status.State = StateRunning
		metrics.BuildPaused.Set(0)
		r.log.Info("Build resumed")
		r.emit()
		r.dispatch()

	case cmdCancel:
		if !r.status.State.Active() {
			return ErrInvalidState
		}
		r.cancel()

	default:
		return fmt.Errorf("unknown command %d", kind)
	}
	return nil
}

func (r *buildRun) cancel() {
	r.cancelled.Store(true)
	queued := len(r.queue)
	r.queue = nil
	r.terminateWorkers()

	if n := len(r.buffer); n > 0 {
		r.log.Warn("Discarding %d unflushed records", n)
	}
	r.buffer = nil

	r.log.Info("Build cancelled with %d tasks queued", queued)
	r.finish(StateCancelled)
}

// fail aborts the build and sends the fatal notification once.
func (r *buildRun) fail(message string) {
	if r.status.State.Terminal() {
		return
	}

	r.cancelled.Store(true)
	r.queue = nil
	r.terminateWorkers()
	r.log.Error("Build failed: %s", message)
	r.finish(StateFailed)
	r.notes.push(func() { r.d.observers.fatal(message) })
}

func (r *buildRun) finish(state State) {
	r.status.State = state
	r.status.EndedAt = time.Now()
	r.status.CurrentDirectory = ""
	r.status.CurrentFile = ""

	duration := r.status.EndedAt.Sub(r.status.StartedAt)
	metrics.BuildsTotal.WithLabelValues(string(state)).Inc()
	metrics.BuildRunning.Set(0)
	metrics.BuildPaused.Set(0)
	metrics.BuildLastDuration.Set(duration.Seconds())
	metrics.BuildLastTimestamp.SetToCurrentTime()

	r.log.Info("Build %s in %v: %d/%d processed, %d succeeded, %d failed",
		state, duration.Round(time.Millisecond), r.status.Processed, r.status.Total, r.status.Succeeded, r.status.Failed)
	r.emit()
}

// emit publishes the current status and queues it for observers.
func (r *buildRun) emit() {
	s := r.status
	r.d.publish(r, s)
	r.notes.push(func() { r.d.observers.status(s) })
}

// scanSources is the default scanFunc.
func scanSources(s settings.Settings, onProgress scanner.ProgressFunc, isCancelled func() bool) []string {
	return scanner.New(s).Scan(s.SourceDirs, onProgress, isCancelled)
}
