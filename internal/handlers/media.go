package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"media-indexer/internal/database"
	"media-indexer/internal/logging"
)

// QueryMedia lists indexed media, newest capture first.
//
// Query parameters: q (file name keyword), start and end (RFC 3339,
// inclusive), favorites (true to list favorites only), offset, limit.
func (h *Handlers) QueryMedia(w http.ResponseWriter, r *http.Request) {
	q, msg := parseMediaQuery(r)
	if msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	index, err := h.library.Index()
	if err != nil {
		writeStoreError(w, "query media", err)
		return
	}

	page, err := index.QueryMedia(r.Context(), q)
	if err != nil {
		writeStoreError(w, "query media", err)
		return
	}
	if page.Items == nil {
		page.Items = []database.MediaItem{}
	}
	writeJSON(w, http.StatusOK, page)
}

func parseMediaQuery(r *http.Request) (database.MediaQuery, string) {
	values := r.URL.Query()
	q := database.MediaQuery{Keyword: values.Get("q")}

	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, name + " must be an RFC 3339 timestamp"
		}
		*dst = t
	}

	if raw := values.Get("favorites"); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			return q, "favorites must be a boolean"
		}
		q.FavoritesOnly = fav
	}

	var ok bool
	if q.Offset, ok = intParam(r, "offset", 0); !ok {
		return q, "offset must be a non-negative integer"
	}
	if q.Limit, ok = intParam(r, "limit", database.DefaultQueryLimit); !ok {
		return q, "limit must be a non-negative integer"
	}
	return q, ""
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// SetFavorite sets or clears the favorite flag of one media row.
func (h *Handlers) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, "invalid media id", http.StatusBadRequest)
		return
	}

	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	index, err := h.library.Index()
	if err != nil {
		writeStoreError(w, "update favorite", err)
		return
	}

	if err := index.ToggleFavorite(r.Context(), id, req.Favorite); err != nil {
		if errors.Is(err, database.ErrMediaNotFound) {
			writeJSONError(w, "media not found", http.StatusNotFound)
			return
		}
		writeStoreError(w, "update favorite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearFavorites removes the favorite flag from every media row.
func (h *Handlers) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	index, err := h.library.Index()
	if err != nil {
		writeStoreError(w, "clear favorites", err)
		return
	}
	if err := index.ClearAllFavorites(r.Context()); err != nil {
		writeStoreError(w, "clear favorites", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetThumbnail serves the stored WebP thumbnail for a thumbnail key.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		writeJSONError(w, "thumbnail key is required", http.StatusBadRequest)
		return
	}

	thumbs, err := h.library.Thumbnails()
	if err != nil {
		writeStoreError(w, "load thumbnail", err)
		return
	}

	data, err := thumbs.GetThumbnail(r.Context(), key)
	if err != nil {
		if errors.Is(err, database.ErrThumbnailNotFound) {
			writeJSONError(w, "thumbnail not found", http.StatusNotFound)
			return
		}
		writeStoreError(w, "load thumbnail", err)
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.Debug("thumbnail %s: write failed: %v", key, err)
	}
}
