package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/marovik/scribe/db"
)

// HandleOperations lists recent audit rows, newest first. channel_id narrows
// the listing to one channel; limit caps the row count.
func (h *Handlers) HandleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channelID := r.URL.Query().Get("channel_id")
	limit := parseIntQuery(r, "limit", 50)
	ops, err := db.ListOperations(r.Context(), h.db, channelID, limit)
	if err != nil {
		slog.Error("list operations failed", slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ops == nil {
		ops = []db.Operation{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ops)
}
