package chanops

import (
	"context"
	"fmt"
	"strings"

	"github.com/marovik/scribe/platform"
)

// Embedify splits a service-owned record with a bold leading title into
// title plus embed: the title stays as the record's content, everything
// after it becomes a description-only embed. Auto-embeds are un-suppressed
// so the embed renders.
func (e *Engine) Embedify(ctx context.Context, channelID, messageID string) (platform.Record, error) {
	r, err := e.Log.Message(ctx, channelID, messageID)
	if err != nil {
		return platform.Record{}, fmt.Errorf("fetch record %s: %w", messageID, err)
	}
	if !e.owns(r) {
		return platform.Record{}, fmt.Errorf("record %s is not owned by the service: %w", messageID, ErrInput)
	}
	title := titleOf(r.Content)
	if title == "" {
		return platform.Record{}, fmt.Errorf("record %s has no bold leading title: %w", messageID, ErrInput)
	}
	body := strings.TrimSpace(strings.TrimPrefix(r.Content, title))

	edit := platform.Edit{
		Content:        platform.StringPtr(title),
		Embeds:         &[]platform.Embed{{Description: body}},
		SuppressEmbeds: platform.BoolPtr(false),
	}
	rec, err := e.Log.Edit(ctx, channelID, messageID, edit)
	if err != nil {
		return platform.Record{}, fmt.Errorf("apply embedify edit: %w", err)
	}
	return rec, nil
}
