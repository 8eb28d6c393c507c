// Package chanops implements the channel lifecycle operations: cascade
// insertion, republish, table-of-contents generation, export/import and the
// smaller record maintenance flows. The platform only offers append, edit in
// place and delete, so document-style edits are synthesized from those
// primitives against the channel's ordered record log.
package chanops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marovik/scribe/crypto"
	"github.com/marovik/scribe/emoji"
	"github.com/marovik/scribe/enrich"
	"github.com/marovik/scribe/platform"
)

const (
	// placeholder keeps a slot visibly occupied when a record has no text.
	placeholder = "*** ***"
	// defaultInsertContent marks a freshly inserted slot awaiting real text.
	defaultInsertContent = "**[PH]**"

	defaultSummaryTitle = "Table of Contents"
	defaultReplyTimeout = 240 * time.Second
)

// ChannelLog is the slice of the platform client the operations consume.
// *platform.Client satisfies it through PlatformLog; tests use an in-memory
// fake.
type ChannelLog interface {
	History(channelID string, oldestFirst bool) platform.Iterator
	Message(ctx context.Context, channelID, messageID string) (platform.Record, error)
	Send(ctx context.Context, channelID string, out platform.Outgoing) (platform.Record, error)
	Edit(ctx context.Context, channelID, messageID string, edit platform.Edit) (platform.Record, error)
	Delete(ctx context.Context, channelID, messageID string) error
	Channel(ctx context.Context, channelID string) (platform.Channel, error)
	DMChannel(ctx context.Context, userID string) (platform.Channel, error)
	Attachment(ctx context.Context, fileURL string) ([]byte, error)
}

// PlatformLog adapts *platform.Client to ChannelLog. The only glue needed is
// History, which must return the Iterator interface rather than the concrete
// type.
type PlatformLog struct {
	*platform.Client
}

func (p PlatformLog) History(channelID string, oldestFirst bool) platform.Iterator {
	return p.Client.History(channelID, oldestFirst)
}

var _ ChannelLog = PlatformLog{}

// Engine runs lifecycle operations against one channel log. Callers are
// expected to serialize operations per channel; the engine itself performs
// no locking.
type Engine struct {
	Log   ChannelLog
	BotID string // records by this author id are service owned

	Emoji    *emoji.Codec
	Enricher *enrich.Rewriter // nil leaves catalog links untouched

	DataDir      string
	SummaryTitle string               // empty means "Table of Contents"
	BundleKey    *crypto.AESEncryptor // nil writes plain bundle documents

	Waiters      *platform.Waiters // reply waits for the interactive edit flow
	ReplyTimeout time.Duration
}

func (e *Engine) owns(r platform.Record) bool {
	return e.BotID != "" && r.Author.ID == e.BotID
}

func (e *Engine) summaryTitle() string {
	if e.SummaryTitle != "" {
		return e.SummaryTitle
	}
	return defaultSummaryTitle
}

func (e *Engine) replyTimeout() time.Duration {
	if e.ReplyTimeout > 0 {
		return e.ReplyTimeout
	}
	return defaultReplyTimeout
}

func (e *Engine) emojify(s string) string {
	if e.Emoji == nil {
		return s
	}
	return e.Emoji.Emojify(s)
}

// fetchFiles downloads a record's attachments for re-upload. Any failure
// fails the whole batch; shifts must not silently drop a file.
func (e *Engine) fetchFiles(ctx context.Context, atts []platform.Attachment) ([]platform.FilePayload, error) {
	if len(atts) == 0 {
		return nil, nil
	}
	files := make([]platform.FilePayload, 0, len(atts))
	for _, att := range atts {
		data, err := e.Log.Attachment(ctx, att.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch attachment %s: %w", att.Filename, err)
		}
		files = append(files, platform.FilePayload{Filename: att.Filename, Data: data})
	}
	return files, nil
}

// fetchFilesBestEffort downloads what it can and logs the rest at warn.
func (e *Engine) fetchFilesBestEffort(ctx context.Context, logger *slog.Logger, atts []platform.Attachment) []platform.FilePayload {
	var files []platform.FilePayload
	for _, att := range atts {
		data, err := e.Log.Attachment(ctx, att.URL)
		if err != nil {
			logger.Warn("attachment fetch failed, skipping file", slog.String("filename", att.Filename), slog.Any("err", err))
			continue
		}
		files = append(files, platform.FilePayload{Filename: att.Filename, Data: data})
	}
	return files
}

// embedsOf copies a record's embeds into an Edit-ready slice. The result is
// never nil so an edit always clears stale embeds instead of keeping them.
func embedsOf(r platform.Record) *[]platform.Embed {
	es := make([]platform.Embed, len(r.Embeds))
	copy(es, r.Embeds)
	return &es
}

// collect snapshots the channel's records oldest first. Operations that
// append while walking (republish) must not consume a live iterator, or
// they would chase their own writes.
func (e *Engine) collect(ctx context.Context, channelID string) ([]platform.Record, error) {
	var out []platform.Record
	it := e.Log.History(channelID, true)
	for it.Next(ctx) {
		out = append(out, it.Record())
	}
	return out, it.Err()
}
