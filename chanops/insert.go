package chanops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marovik/scribe/platform"
	"github.com/marovik/scribe/telemetry"
)

// Insert places content immediately before the target record by shifting
// every service-owned payload from the target onward one slot toward the
// channel end. The channel only supports append and edit in place, so the
// insert is synthesized:
//
//  1. Append a placeholder record, extending the channel by one slot.
//  2. Walk history newest first, collecting service-owned ids until and
//     including the target. The placeholder is the head of that list.
//  3. For each adjacent pair, copy the older record's payload into the
//     newer one. Pairs run strictly in order; each step reads state the
//     next step is about to overwrite.
//  4. Overwrite the target with the inserted content.
//
// A mid-walk failure leaves the channel partially shifted; there is no
// rollback. The appended placeholder also stays behind when the target is
// never found. Returns the number of payload shifts performed.
func (e *Engine) Insert(ctx context.Context, channelID, targetID, content string) (int, error) {
	start := time.Now()
	logger := slog.With(slog.String("op", "insert"), slog.String("channel_id", channelID), slog.String("target_id", targetID))
	if content == "" {
		content = defaultInsertContent
	}

	ph, err := e.Log.Send(ctx, channelID, platform.Outgoing{Content: placeholder, SuppressEmbeds: true})
	if err != nil {
		return 0, fmt.Errorf("append placeholder: %w", err)
	}

	// Newest first: ids[0] is the placeholder, the last entry the target.
	ids := []string{ph.ID}
	found := false
	it := e.Log.History(channelID, false)
	for it.Next(ctx) {
		r := it.Record()
		if r.ID == ph.ID || !e.owns(r) {
			continue
		}
		ids = append(ids, r.ID)
		if r.ID == targetID {
			found = true
			break
		}
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("walk history: %w", err)
	}
	if !found {
		return 0, fmt.Errorf("target record %s not found among service records in channel %s, placeholder %s left behind: %w", targetID, channelID, ph.ID, ErrInput)
	}

	shifted := 0
	for i := 0; i+1 < len(ids); i++ {
		var cur, next platform.Record
		g, gctx := errgroup.WithContext(ctx)
		curID, nextID := ids[i], ids[i+1]
		g.Go(func() error {
			var err error
			cur, err = e.Log.Message(gctx, channelID, curID)
			return err
		})
		g.Go(func() error {
			var err error
			next, err = e.Log.Message(gctx, channelID, nextID)
			return err
		})
		if err := g.Wait(); err != nil {
			return shifted, fmt.Errorf("fetch shift pair %s/%s: %w", curID, nextID, err)
		}

		files, err := e.fetchFiles(ctx, next.Attachments)
		if err != nil {
			return shifted, fmt.Errorf("carry attachments of %s: %w", nextID, err)
		}
		if files == nil {
			files = []platform.FilePayload{}
		}
		edit := platform.Edit{
			Content:        platform.StringPtr(next.Content),
			Attachments:    &files,
			Embeds:         embedsOf(next),
			SuppressEmbeds: platform.BoolPtr(len(next.Embeds) == 0),
		}
		if _, err := e.Log.Edit(ctx, channelID, cur.ID, edit); err != nil {
			return shifted, fmt.Errorf("shift payload of %s into %s: %w", nextID, curID, err)
		}
		shifted++
		telemetry.InsertShifts.Inc()
	}

	edit := platform.Edit{
		Content:        platform.StringPtr(content),
		Embeds:         &[]platform.Embed{},
		SuppressEmbeds: platform.BoolPtr(true),
	}
	if _, err := e.Log.Edit(ctx, channelID, targetID, edit); err != nil {
		return shifted, fmt.Errorf("write inserted content into %s: %w", targetID, err)
	}
	logger.Info("insert complete", slog.Int("shifted", shifted), slog.Duration("duration", time.Since(start)))
	return shifted, nil
}
