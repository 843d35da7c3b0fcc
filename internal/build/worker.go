package build

import (
	"context"
	"fmt"
	"runtime/debug"

	"media-indexer/internal/database"
	"media-indexer/internal/logging"
	"media-indexer/internal/metrics"
)

// workerHandle is the dispatcher's end of one worker goroutine.
type workerHandle struct {
	tasks chan Task
}

// workerSlot tracks what one worker is doing. Only the actor touches it.
type workerSlot struct {
	handle *workerHandle
	busy   bool
	task   *Task
}

type workerResult struct {
	slot   int
	result Result
}

// startWorker launches worker slot id. It exits when ctx is done; a result
// finished after that is dropped.
func startWorker(ctx context.Context, id int, p Processor, results chan<- workerResult) *workerHandle {
	h := &workerHandle{tasks: make(chan Task, 1)}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-h.tasks:
				metrics.WorkersBusy.Inc()
				res := processSafely(ctx, p, task)
				metrics.WorkersBusy.Dec()

				select {
				case results <- workerResult{slot: id, result: res}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return h
}

// processSafely runs p.Process, turning a panic into a metadata failure.
func processSafely(ctx context.Context, p Processor, task Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WorkerPanicsTotal.Inc()
			logging.Error("Worker panic processing %s: %v\n%s", task.FilePath, r, debug.Stack())
			res = failedAt(database.StageMetadata, fmt.Sprintf("worker panic: %v", r))
		}
	}()
	return p.Process(ctx, task)
}
