package chanops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marovik/scribe/platform"
	"github.com/marovik/scribe/telemetry"
)

// Republish rebuilds every record at the channel end under the service
// identity, oldest first, deleting each original after its replacement is
// sent. Foreign-authored text passes through the emoji filter so shortcodes
// typed by operators render as server emoji. A table-of-contents record is
// not copied; it is regenerated after the walk so its jump links point at
// the fresh records.
//
// Not idempotent: every run recreates records with fresh ids. A mid-walk
// failure leaves the channel partially rebuilt; there is no rollback.
// Returns the number of original records consumed.
func (e *Engine) Republish(ctx context.Context, channelID string) (int, error) {
	start := time.Now()
	logger := slog.With(slog.String("op", "republish"), slog.String("channel_id", channelID))

	// Snapshot before writing anything. Walking a live iterator would chase
	// the records this loop appends.
	records, err := e.collect(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("read channel: %w", err)
	}

	processed := 0
	tocSeen := false
	for _, r := range records {
		switch {
		case r.Content != "":
			content := r.Content
			if !e.owns(r) {
				content = e.emojify(content)
			}
			out := platform.Outgoing{
				Content:        content,
				Files:          e.fetchFilesBestEffort(ctx, logger, r.Attachments),
				Embeds:         r.Embeds,
				SuppressEmbeds: len(r.Embeds) == 0,
			}
			if _, err := e.Log.Send(ctx, channelID, out); err != nil {
				return processed, fmt.Errorf("resend record %s: %w", r.ID, err)
			}
			telemetry.RecordsRepublished.Inc()
		case len(r.Embeds) > 0 && r.Embeds[0].Title == e.summaryTitle():
			// Regenerated below, once the records it indexes exist again.
			tocSeen = true
		default:
			out := platform.Outgoing{Content: placeholder, SuppressEmbeds: true}
			if _, err := e.Log.Send(ctx, channelID, out); err != nil {
				return processed, fmt.Errorf("resend placeholder for %s: %w", r.ID, err)
			}
			telemetry.RecordsRepublished.Inc()
		}
		if err := e.Log.Delete(ctx, channelID, r.ID); err != nil {
			return processed, fmt.Errorf("delete original %s: %w", r.ID, err)
		}
		processed++
	}

	if tocSeen {
		if _, err := e.Summary(ctx, channelID); err != nil {
			return processed, fmt.Errorf("regenerate table of contents: %w", err)
		}
	}
	logger.Info("republish complete", slog.Int("records", processed), slog.Bool("toc_regenerated", tocSeen), slog.Duration("duration", time.Since(start)))
	return processed, nil
}
