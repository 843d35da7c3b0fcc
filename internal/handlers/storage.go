package handlers

import (
	"context"
	"net/http"
)

// ClearThumbnails deletes every stored thumbnail. Refused with 409 while a
// build is active.
func (h *Handlers) ClearThumbnails(w http.ResponseWriter, r *http.Request) {
	h.clearStore(w, r, "clear thumbnails", func(ctx context.Context) error {
		thumbs, err := h.library.Thumbnails()
		if err != nil {
			return err
		}
		return thumbs.ClearThumbnails(ctx)
	})
}

// ClearIndex deletes every media row and build error. Refused with 409
// while a build is active.
func (h *Handlers) ClearIndex(w http.ResponseWriter, r *http.Request) {
	h.clearStore(w, r, "clear index", func(ctx context.Context) error {
		index, err := h.library.Index()
		if err != nil {
			return err
		}
		return index.ClearMediaAndErrors(ctx)
	})
}

func (h *Handlers) clearStore(w http.ResponseWriter, r *http.Request, operation string, clear func(context.Context) error) {
	if h.builds.Status().State.Active() {
		writeJSONError(w, "a build is in progress", http.StatusConflict)
		return
	}
	if err := clear(r.Context()); err != nil {
		writeStoreError(w, operation, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
