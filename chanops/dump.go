package chanops

import (
	"context"
	"fmt"

	"github.com/marovik/scribe/emoji"
	"github.com/marovik/scribe/platform"
)

// Dump sends the channel's records to the user's DM channel oldest first,
// each deemojified and fenced in a code block. Records with no text are
// skipped. Returns the number of records sent.
func (e *Engine) Dump(ctx context.Context, channelID, userID string) (int, error) {
	dm, err := e.Log.DMChannel(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("open dm channel for %s: %w", userID, err)
	}

	sent := 0
	it := e.Log.History(channelID, true)
	for it.Next(ctx) {
		r := it.Record()
		if r.Content == "" {
			continue
		}
		out := platform.Outgoing{
			Content:        "```" + emoji.Deemojify(r.Content) + "```",
			SuppressEmbeds: true,
		}
		if _, err := e.Log.Send(ctx, dm.ID, out); err != nil {
			return sent, fmt.Errorf("send transcript record %s: %w", r.ID, err)
		}
		sent++
	}
	if err := it.Err(); err != nil {
		return sent, fmt.Errorf("read channel: %w", err)
	}
	return sent, nil
}
