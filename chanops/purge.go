package chanops

import (
	"context"
	"fmt"
	"log/slog"
)

// Purge deletes the newest limit records regardless of author. The ids are
// snapshotted before the first delete so paging cursors never chase removed
// records. Returns the number deleted.
func (e *Engine) Purge(ctx context.Context, channelID string, limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("purge count must be positive, got %d: %w", limit, ErrInput)
	}

	var ids []string
	it := e.Log.History(channelID, false)
	for len(ids) < limit && it.Next(ctx) {
		ids = append(ids, it.Record().ID)
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("read channel: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if err := e.Log.Delete(ctx, channelID, id); err != nil {
			return deleted, fmt.Errorf("delete record %s: %w", id, err)
		}
		deleted++
	}
	slog.Info("purge complete", slog.String("channel_id", channelID), slog.Int("deleted", deleted))
	return deleted, nil
}
