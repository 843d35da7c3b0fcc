package build

import (
	"time"

	"media-indexer/internal/database"
)

// State is the lifecycle state of a build.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Active reports whether a build in this state is still in progress.
func (s State) Active() bool {
	return s == StateScanning || s == StateRunning || s == StatePaused
}

// Terminal reports whether the state ends a build.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Status is a snapshot of build progress. Processed always equals
// Succeeded + Failed.
type Status struct {
	BuildID          string    `json:"buildId"`
	State            State     `json:"state"`
	Total            int       `json:"total"`
	Processed        int       `json:"processed"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	CurrentDirectory string    `json:"currentDirectory"`
	CurrentFile      string    `json:"currentFile"`
	StartedAt        time.Time `json:"startedAt"`
	EndedAt          time.Time `json:"endedAt"`
}

// Task is one file handed to a worker.
type Task struct {
	FilePath           string
	TmpDir             string
	ThumbnailSize      int
	ThumbnailQuality   int
	IgnoreLocationData bool
}

// Result is a worker's answer to one Task. A result is either fully
// successful, with a record and thumbnail, or a failure with a stage and
// message; use succeeded and failedAt to build one.
type Result struct {
	OK             bool
	Record         *database.MediaRecord
	ThumbnailKey   string
	ThumbnailBytes []byte
	ErrorStage     database.Stage
	ErrorMessage   string
}

func succeeded(record database.MediaRecord, key string, thumbnail []byte) Result {
	return Result{
		OK:             true,
		Record:         &record,
		ThumbnailKey:   key,
		ThumbnailBytes: thumbnail,
	}
}

func failedAt(stage database.Stage, message string) Result {
	return Result{ErrorStage: stage, ErrorMessage: message}
}
