package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// HandleChannelsDispatcher routes requests under /api/channels/{cid}/* to
// the appropriate sub-handlers.
func (h *Handlers) HandleChannelsDispatcher(w http.ResponseWriter, r *http.Request) {
	// crude routing
	path := strings.TrimPrefix(r.URL.Path, "/api/channels/")
	parts := strings.Split(path, "/")
	channelID := parts[0]
	if channelID == "" {
		http.NotFound(w, r)
		return
	}
	tail := parts[1:]
	switch {
	case len(tail) == 1 && tail[0] == "insert":
		h.handleInsert(w, r, channelID)
	case len(tail) == 1 && tail[0] == "republish":
		h.handleRepublish(w, r, channelID)
	case len(tail) == 1 && tail[0] == "summary":
		h.handleSummary(w, r, channelID)
	case len(tail) == 1 && tail[0] == "export":
		h.handleExport(w, r, channelID)
	case len(tail) == 1 && tail[0] == "import":
		h.handleImport(w, r, channelID)
	case len(tail) == 1 && tail[0] == "purge":
		h.handlePurge(w, r, channelID)
	case len(tail) == 1 && tail[0] == "dump":
		h.handleDump(w, r, channelID)
	case len(tail) == 1 && tail[0] == "triggers":
		h.handleTriggers(w, r, channelID)
	case len(tail) == 2 && tail[0] == "triggers":
		h.handleTriggerDelete(w, r, channelID, tail[1])
	case len(tail) == 3 && tail[0] == "messages" && tail[1] != "":
		h.handleMessageOp(w, r, channelID, tail[1], tail[2])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) handleInsert(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		TargetID string `json:"target_id"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.TargetID == "" {
		http.Error(w, "target_id is required", http.StatusBadRequest)
		return
	}
	h.runOperation(w, r, channelID, "insert", func(ctx context.Context) (string, error) {
		n, err := h.engine.Insert(ctx, channelID, body.TargetID, body.Content)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("shifted=%d", n), nil
	})
}

func (h *Handlers) handleRepublish(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.runOperation(w, r, channelID, "republish", func(ctx context.Context) (string, error) {
		n, err := h.engine.Republish(ctx, channelID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("records=%d", n), nil
	})
}

func (h *Handlers) handleSummary(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.runOperation(w, r, channelID, "summary", func(ctx context.Context) (string, error) {
		rec, err := h.engine.Summary(ctx, channelID)
		if err != nil {
			return "", err
		}
		return "message_id=" + rec.ID, nil
	})
}

func (h *Handlers) handleExport(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Body is optional; an omitted name falls back to <channel>-<day>.<month>.
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	h.runOperation(w, r, channelID, "export", func(ctx context.Context) (string, error) {
		res, err := h.engine.Export(ctx, channelID, body.Name)
		if err != nil {
			return "", err
		}
		detail := fmt.Sprintf("name=%s records=%d files=%d", res.Name, res.Records, res.Files)
		if !h.archiveEnabled() {
			slog.Info("archive disabled, bundle kept local only", slog.String("name", res.Name))
			return detail, nil
		}
		link, upErr := h.archive.Upload(ctx, res.Document)
		if upErr != nil {
			// The export itself succeeded; losing the off-site copy is
			// not worth failing the operation over.
			slog.Warn("archive upload failed", slog.String("channel_id", channelID), slog.Any("err", upErr))
			return detail, nil
		}
		return detail + " archived=" + link, nil
	})
}

func (h *Handlers) handleImport(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	h.runOperation(w, r, channelID, "import", func(ctx context.Context) (string, error) {
		n, err := h.engine.Import(ctx, channelID, body.Name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("imported=%d", n), nil
	})
}

func (h *Handlers) handlePurge(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	h.runOperation(w, r, channelID, "purge", func(ctx context.Context) (string, error) {
		n, err := h.engine.Purge(ctx, channelID, body.Count)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted=%d", n), nil
	})
}

func (h *Handlers) handleDump(w http.ResponseWriter, r *http.Request, channelID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	h.runOperation(w, r, channelID, "dump", func(ctx context.Context) (string, error) {
		n, err := h.engine.Dump(ctx, channelID, body.UserID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("messages=%d", n), nil
	})
}

func (h *Handlers) handleMessageOp(w http.ResponseWriter, r *http.Request, channelID, messageID, op string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch op {
	case "embedify":
		h.runOperation(w, r, channelID, "embedify", func(ctx context.Context) (string, error) {
			rec, err := h.engine.Embedify(ctx, channelID, messageID)
			if err != nil {
				return "", err
			}
			return "message_id=" + rec.ID, nil
		})
	case "enrich":
		h.runOperation(w, r, channelID, "enrich", func(ctx context.Context) (string, error) {
			rec, changed, err := h.engine.EnrichRecord(ctx, channelID, messageID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("message_id=%s changed=%t", rec.ID, changed), nil
		})
	case "edit":
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.UserID == "" {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}
		// Long poll: the response lands after the editor's reply, the
		// timeout, or a cancel.
		h.runOperation(w, r, channelID, "edit", func(ctx context.Context) (string, error) {
			rec, err := h.engine.InteractiveEdit(ctx, channelID, messageID, body.UserID)
			if err != nil {
				return "", err
			}
			return "message_id=" + rec.ID, nil
		})
	default:
		http.NotFound(w, r)
	}
}
