// Package catalog resolves item ids to display names through the game
// data API. Auth is the client credentials flow; the app token is cached
// in memory and mirrored into the encrypted kv store so restarts skip a
// token round trip.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/marovik/scribe/db"
)

const (
	// kvTokenKey is where the app token is mirrored in the kv store.
	kvTokenKey = "catalog_app_token"

	// expiryBuffer is how long before expiry a cached token stops being
	// served.
	expiryBuffer = 60 * time.Second
)

// TokenSource fetches and caches a catalog app access (client
// credentials) token.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client

	// DB, when set, mirrors the token into the encrypted kv store.
	DB *sql.DB

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	restored  bool
}

type persistedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.token != "" && time.Until(ts.expiresAt) > expiryBuffer {
		tok := ts.token
		ts.mu.RUnlock()
		return tok, nil
	}
	ts.mu.RUnlock()
	return ts.refresh(ctx)
}

// SetToken seeds the cache directly. Used by tests and token restores.
func (ts *TokenSource) SetToken(token string, expiresAt time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = token
	ts.expiresAt = expiresAt
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Until(ts.expiresAt) > expiryBuffer {
		return ts.token, nil
	}
	if ts.DB != nil && !ts.restored {
		ts.restored = true
		if tok, exp, ok := ts.loadPersisted(ctx); ok && time.Until(exp) > expiryBuffer {
			ts.token = tok
			ts.expiresAt = exp
			return ts.token, nil
		}
	}
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for catalog token")
	}

	form := url.Values{}
	form.Set("client_id", ts.ClientID)
	form.Set("client_secret", ts.ClientSecret)
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	hc := ts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("catalog token request failed: %s: %s", resp.Status, string(b))
	}
	var at struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&at); err != nil {
		return "", err
	}
	if at.AccessToken == "" {
		return "", errors.New("empty access_token in catalog response")
	}
	ts.token = at.AccessToken
	ts.expiresAt = time.Now().Add(time.Duration(at.ExpiresIn) * time.Second)
	ts.persist(ctx)
	return ts.token, nil
}

func (ts *TokenSource) loadPersisted(ctx context.Context) (string, time.Time, bool) {
	raw, err := db.GetSecretKV(ctx, ts.DB, kvTokenKey)
	if err != nil || raw == "" {
		return "", time.Time{}, false
	}
	var pt persistedToken
	if err := json.Unmarshal([]byte(raw), &pt); err != nil {
		slog.Warn("discarding malformed persisted catalog token", slog.Any("err", err))
		return "", time.Time{}, false
	}
	return pt.Token, pt.ExpiresAt, pt.Token != ""
}

// persist mirrors the cached token into kv. Failures only cost the next
// process start one extra token request, so they are logged and ignored.
func (ts *TokenSource) persist(ctx context.Context) {
	if ts.DB == nil {
		return
	}
	raw, err := json.Marshal(persistedToken{Token: ts.token, ExpiresAt: ts.expiresAt})
	if err != nil {
		return
	}
	if err := db.SetSecretKV(ctx, ts.DB, kvTokenKey, string(raw)); err != nil {
		slog.Warn("failed to persist catalog token", slog.Any("err", err))
	}
}
