package journal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler lists the most recent entries as JSON. The optional "limit" query
// parameter bounds the number of entries.
func (j *Journal) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		entries, err := j.List(r.Context(), limit)
		if err != nil {
			slog.Error("Failed to list journal entries", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			slog.Debug("Failed to write journal listing", "error", err)
		}
	})
}
