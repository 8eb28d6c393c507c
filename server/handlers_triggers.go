package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/marovik/scribe/trigger"
)

func (h *Handlers) handleTriggers(w http.ResponseWriter, r *http.Request, channelID string) {
	switch r.Method {
	case http.MethodGet:
		triggers, err := trigger.List(r.Context(), h.db, channelID)
		if err != nil {
			slog.Error("list triggers failed", slog.String("channel_id", channelID), slog.Any("err", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if triggers == nil {
			triggers = []trigger.Trigger{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(triggers)
	case http.MethodPost:
		var req trigger.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		created, err := trigger.Create(r.Context(), h.db, h.check, channelID, req)
		if err != nil {
			if errors.Is(err, trigger.ErrInvalid) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			slog.Error("create trigger failed", slog.String("channel_id", channelID), slog.Any("err", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(created)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) handleTriggerDelete(w http.ResponseWriter, r *http.Request, channelID, rawID string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		http.Error(w, "invalid trigger id", http.StatusBadRequest)
		return
	}
	found, err := trigger.Delete(r.Context(), h.db, channelID, id)
	if err != nil {
		slog.Error("delete trigger failed", slog.String("channel_id", channelID), slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "trigger not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
