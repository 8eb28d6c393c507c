package trigger

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/marovik/scribe/platform"
	"github.com/marovik/scribe/telemetry"
)

// Replier posts an auto reply. *platform.Client satisfies it.
type Replier interface {
	Send(ctx context.Context, channelID string, out platform.Outgoing) (platform.Record, error)
}

// Listener evaluates incoming gateway records against the registered
// triggers and answers the first match.
type Listener struct {
	DB  *sql.DB
	Log Replier

	// load is swappable in tests.
	load func(ctx context.Context, dbx *sql.DB, channelID string) ([]Trigger, error)
}

// NewListener wires the listener to the Postgres trigger store.
func NewListener(dbx *sql.DB, log Replier) *Listener {
	return &Listener{DB: dbx, Log: log, load: List}
}

// Handler returns a function suitable for Gateway.OnMessage. Gateway
// handlers run on the read loop and must not block, so each record is
// evaluated on its own goroutine.
func (l *Listener) Handler(ctx context.Context) func(platform.Record) {
	return func(rec platform.Record) {
		go l.handle(ctx, rec)
	}
}

func (l *Listener) handle(ctx context.Context, rec platform.Record) {
	if rec.Author.Bot || rec.GuildID == "" {
		return
	}
	triggers, err := l.load(ctx, l.DB, rec.ChannelID)
	if err != nil {
		slog.Warn("trigger lookup failed", slog.String("channel_id", rec.ChannelID), slog.Any("err", err))
		return
	}
	reply, ok := FirstMatch(triggers, rec.Content)
	if !ok {
		return
	}
	if _, err := l.Log.Send(ctx, rec.ChannelID, platform.Outgoing{Content: reply, ReplyTo: rec.ID}); err != nil {
		slog.Warn("trigger reply failed", slog.String("channel_id", rec.ChannelID), slog.Any("err", err))
		return
	}
	telemetry.TriggerReplies.Inc()
	slog.Info("trigger replied",
		slog.String("channel_id", rec.ChannelID),
		slog.String("message_id", rec.ID))
}
