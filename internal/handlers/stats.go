package handlers

import (
	"net/http"

	"github.com/dustin/go-humanize"

	"media-indexer/internal/database"
)

// StatsResponse combines library totals with the on-disk store sizes.
type StatsResponse struct {
	Images      int                   `json:"images"`
	Videos      int                   `json:"videos"`
	Favorites   int                   `json:"favorites"`
	BuildErrors int                   `json:"buildErrors"`
	Storage     database.StorageStats `json:"storage"`
	IndexSize   string                `json:"indexSize"`
	ThumbsSize  string                `json:"thumbnailsSize"`
}

// GetStats returns library totals and storage sizes.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	storage, err := h.library.Stats()
	if err != nil {
		writeStoreError(w, "read storage stats", err)
		return
	}

	index, err := h.library.Index()
	if err != nil {
		writeStoreError(w, "read storage stats", err)
		return
	}
	counts, err := index.Counts(r.Context())
	if err != nil {
		writeStoreError(w, "count media", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Images:      counts.Images,
		Videos:      counts.Videos,
		Favorites:   counts.Favorites,
		BuildErrors: counts.Errors,
		Storage:     storage,
		IndexSize:   humanize.IBytes(uint64(storage.Index.Total())),
		ThumbsSize:  humanize.IBytes(uint64(storage.Thumbnails.Total())),
	})
}
