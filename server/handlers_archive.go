package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HandleArchiveAuthStart initiates the Drive OAuth flow by redirecting to Google.
func (h *Handlers) HandleArchiveAuthStart(w http.ResponseWriter, r *http.Request) {
	if !h.archiveEnabled() {
		http.Error(w, "archive not configured (need DRIVE_CLIENT_ID + DRIVE_CLIENT_SECRET)", http.StatusBadRequest)
		return
	}
	// generate state
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", 500)
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(10*time.Minute))
	http.Redirect(w, r, h.archive.AuthCodeURL(st), http.StatusFound)
}

// HandleArchiveAuthCallback handles the OAuth callback from Google and stores tokens.
func (h *Handlers) HandleArchiveAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !h.archiveEnabled() {
		http.Error(w, "archive not configured", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", 400)
		return
	}
	// validate state
	h.stateMu.RLock()
	exp, ok := h.stateStore[st]
	h.stateMu.RUnlock()
	if !ok || time.Now().After(exp) {
		http.Error(w, "invalid state", 400)
		return
	}
	h.stateMu.Lock()
	delete(h.stateStore, st)
	h.stateMu.Unlock()
	tok, err := h.archive.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "ok", "expiry": tok.Expiry, "access_token_present": tok.AccessToken != "", "refresh_token_present": tok.RefreshToken != ""}); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
