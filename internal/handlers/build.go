package handlers

import (
	"errors"
	"net/http"

	"media-indexer/internal/build"
	"media-indexer/internal/database"
	"media-indexer/internal/logging"
	"media-indexer/internal/settings"
)

const defaultErrorLimit = 50

// GetBuildStatus returns the latest build status.
func (h *Handlers) GetBuildStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.builds.Status())
}

// StartBuild starts a full re-index with the settings currently in the
// environment and answers 202 with the new status.
func (h *Handlers) StartBuild(w http.ResponseWriter, _ *http.Request) {
	s, err := h.loadSettings()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.builds.StartBuild(s)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.builds.Status())
	case errors.Is(err, build.ErrBuildActive):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, settings.ErrMissingPaths), errors.Is(err, settings.ErrNoSourceDirs):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logging.Error("start build: %v", err)
		writeJSONError(w, "failed to start build", http.StatusInternalServerError)
	}
}

// PauseBuild stops dispatching new tasks.
func (h *Handlers) PauseBuild(w http.ResponseWriter, _ *http.Request) {
	h.control(w, h.builds.PauseBuild)
}

// ResumeBuild resumes a paused build.
func (h *Handlers) ResumeBuild(w http.ResponseWriter, _ *http.Request) {
	h.control(w, h.builds.ResumeBuild)
}

// CancelBuild cancels the current build.
func (h *Handlers) CancelBuild(w http.ResponseWriter, _ *http.Request) {
	h.control(w, h.builds.CancelBuild)
}

// control runs op and answers with the resulting status, or 409 when the
// build is not in a state that allows op.
func (h *Handlers) control(w http.ResponseWriter, op func() error) {
	if err := op(); err != nil {
		if errors.Is(err, build.ErrInvalidState) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.builds.Status())
}

// GetBuildErrors returns the most recent build errors, newest first.
// The limit query parameter defaults to 50.
func (h *Handlers) GetBuildErrors(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", defaultErrorLimit)
	if !ok {
		writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}

	index, err := h.library.Index()
	if err != nil {
		writeStoreError(w, "query build errors", err)
		return
	}

	items, err := index.QueryErrors(r.Context(), limit)
	if err != nil {
		writeStoreError(w, "query build errors", err)
		return
	}
	if items == nil {
		items = []database.BuildError{}
	}
	writeJSON(w, http.StatusOK, items)
}

// ClearBuildErrors deletes every recorded build error.
func (h *Handlers) ClearBuildErrors(w http.ResponseWriter, r *http.Request) {
	index, err := h.library.Index()
	if err != nil {
		writeStoreError(w, "clear build errors", err)
		return
	}
	if err := index.ClearBuildErrors(r.Context()); err != nil {
		writeStoreError(w, "clear build errors", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
