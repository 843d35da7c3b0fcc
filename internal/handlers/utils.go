package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"media-indexer/internal/database"
	"media-indexer/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged; the status line is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeStoreError maps a store error to a response. Unconnected stores
// mean no build has run yet.
func writeStoreError(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, database.ErrNotConnected) {
		writeJSONError(w, "no index available, run a build first", http.StatusServiceUnavailable)
		return
	}
	logging.Error("%s: %v", operation, err)
	writeJSONError(w, "failed to "+operation, http.StatusInternalServerError)
}

// intParam parses the query parameter name, returning def when it is
// absent. ok is false when the value is present but not a non-negative
// integer.
func intParam(r *http.Request, name string, def int) (n int, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
