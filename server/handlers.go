package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/marovik/scribe/chanops"
	"github.com/marovik/scribe/config"
	"github.com/marovik/scribe/db"
	"github.com/marovik/scribe/platform"
	"github.com/marovik/scribe/telemetry"
	"github.com/marovik/scribe/trigger"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
)

// Engine runs channel lifecycle operations. *chanops.Engine satisfies it.
type Engine interface {
	Insert(ctx context.Context, channelID, targetID, content string) (int, error)
	Republish(ctx context.Context, channelID string) (int, error)
	Summary(ctx context.Context, channelID string) (platform.Record, error)
	Export(ctx context.Context, channelID, name string) (chanops.ExportResult, error)
	Import(ctx context.Context, channelID, name string) (int, error)
	Dump(ctx context.Context, channelID, userID string) (int, error)
	Purge(ctx context.Context, channelID string, limit int) (int, error)
	Embedify(ctx context.Context, channelID, messageID string) (platform.Record, error)
	EnrichRecord(ctx context.Context, channelID, messageID string) (platform.Record, bool, error)
	InteractiveEdit(ctx context.Context, channelID, messageID, userID string) (platform.Record, error)
}

// Archiver ships export bundles off site. *archive.Service satisfies it.
type Archiver interface {
	Enabled() bool
	Upload(ctx context.Context, path string) (string, error)
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db      *sql.DB
	cfg     *config.Config
	engine  Engine
	check   trigger.RecordChecker
	archive Archiver
	ctx     context.Context

	busy      sync.Map // channel id -> *sync.Mutex
	busyCount atomic.Int64

	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a Handlers instance with the given dependencies.
// archive may be nil when the Drive feature is unconfigured.
func NewHandlers(ctx context.Context, dbx *sql.DB, cfg *config.Config, engine Engine, check trigger.RecordChecker, arch Archiver) *Handlers {
	return &Handlers{
		db:         dbx,
		cfg:        cfg,
		engine:     engine,
		check:      check,
		archive:    arch,
		ctx:        ctx,
		stateStore: make(map[string]time.Time),
	}
}

func (h *Handlers) archiveEnabled() bool {
	return h.archive != nil && h.archive.Enabled()
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// Refusing new states past the cap fails the OAuth flow, which beats
	// unbounded memory growth.
	if len(h.stateStore) >= maxOAuthStates {
		return
	}

	h.stateStore[state] = expiry
}

// lockChannel claims the per-channel operation slot. The second return is
// false when another operation is already running on the channel.
func (h *Handlers) lockChannel(channelID string) (func(), bool) {
	v, _ := h.busy.LoadOrStore(channelID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, false
	}
	telemetry.SetBusyChannels(int(h.busyCount.Add(1)))
	return func() {
		telemetry.SetBusyChannels(int(h.busyCount.Add(-1)))
		mu.Unlock()
	}, true
}

// runOperation serializes the channel, records the audit row around fn,
// and writes the finished row as the response body.
func (h *Handlers) runOperation(w http.ResponseWriter, r *http.Request, channelID, kind string, fn func(ctx context.Context) (string, error)) {
	unlock, ok := h.lockChannel(channelID)
	if !ok {
		http.Error(w, "channel busy", http.StatusConflict)
		return
	}
	defer unlock()

	// Graceful shutdown must cut long waits like interactive edits, or the
	// drain window times out with the channel still locked.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	opID, err := db.BeginOperation(ctx, h.db, channelID, kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	telemetry.OperationsStarted.Inc()

	var detail string
	var opErr error
	telemetry.TimeFunc(telemetry.OperationDuration, func() {
		detail, opErr = fn(ctx)
	})

	// The audit row must land even when the request context died mid-op.
	finCtx := context.WithoutCancel(ctx)
	if ferr := db.FinishOperation(finCtx, h.db, opID, opErr, detail); ferr != nil {
		slog.Warn("audit finish failed", slog.String("op_id", opID), slog.Any("err", ferr))
	}

	if opErr != nil {
		telemetry.OperationsFailed.Inc()
		writeOperationError(w, opErr)
		return
	}
	telemetry.OperationsSucceeded.Inc()
	h.bumpOperationStamp(finCtx, kind)

	op, err := db.GetOperation(finCtx, h.db, opID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(op)
}

// bumpOperationStamp records the last success time per kind, best effort.
func (h *Handlers) bumpOperationStamp(ctx context.Context, kind string) {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		"op_"+kind+"_last", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		slog.Warn("operation stamp write failed", slog.String("kind", kind), slog.Any("err", err))
	}
}

// writeOperationError maps operation failures onto HTTP statuses: user
// cancel and superseded waits 409, reply timeout 408, bad input 400,
// fatal platform faults 502, transient faults 503.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chanops.ErrEditCancelled), errors.Is(err, platform.ErrAwaitSuperseded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, platform.ErrAwaitTimeout):
		http.Error(w, err.Error(), http.StatusRequestTimeout)
	case chanops.IsInputError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		switch chanops.Classify(err) {
		case chanops.ErrorClassFatal:
			http.Error(w, err.Error(), http.StatusBadGateway)
		case chanops.ErrorClassRetryable:
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
