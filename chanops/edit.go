package chanops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marovik/scribe/emoji"
	"github.com/marovik/scribe/platform"
)

// InteractiveEdit lets a user rewrite a service-owned record over DM. The
// user gets the record's current state as editable text, fenced in a code
// block with an EMBED line separating content from the first embed's
// description, and their next direct message becomes the new state:
//
//   - a reply of "Cancel" aborts with nothing written
//   - a reply with an EMBED line splits into content plus a
//     description-only embed, attachments untouched
//   - any other reply becomes the content, and the reply's attachments
//     replace the record's
//
// Catalog links in the reply are enriched before the edit is applied. The
// wait is bounded by the configured reply timeout.
func (e *Engine) InteractiveEdit(ctx context.Context, channelID, messageID, userID string) (platform.Record, error) {
	logger := slog.With(slog.String("op", "edit"), slog.String("channel_id", channelID), slog.String("message_id", messageID))
	if e.Waiters == nil {
		return platform.Record{}, errors.New("interactive edit requires a running gateway")
	}

	r, err := e.Log.Message(ctx, channelID, messageID)
	if err != nil {
		return platform.Record{}, fmt.Errorf("fetch record %s: %w", messageID, err)
	}
	if !e.owns(r) {
		return platform.Record{}, fmt.Errorf("record %s is not owned by the service: %w", messageID, ErrInput)
	}

	prompt := "```" + emoji.Deemojify(r.Content)
	if len(r.Embeds) > 0 {
		prompt += "\nEMBED\n" + r.Embeds[0].Description
	}
	prompt += "```\nWrite \"Cancel\" to stop the process"

	promptFiles, err := e.fetchFiles(ctx, r.Attachments)
	if err != nil {
		return platform.Record{}, fmt.Errorf("prepare prompt: %w", err)
	}
	dm, err := e.Log.DMChannel(ctx, userID)
	if err != nil {
		return platform.Record{}, fmt.Errorf("open dm channel for %s: %w", userID, err)
	}
	if _, err := e.Log.Send(ctx, dm.ID, platform.Outgoing{Content: prompt, Files: promptFiles, SuppressEmbeds: true}); err != nil {
		return platform.Record{}, fmt.Errorf("send prompt: %w", err)
	}

	reply, err := e.Waiters.Await(ctx, userID, e.replyTimeout())
	if err != nil {
		if errors.Is(err, platform.ErrAwaitTimeout) {
			e.notify(ctx, logger, dm.ID, "No reply in time, nothing changed")
		}
		return platform.Record{}, fmt.Errorf("wait for reply: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(reply.Content), "cancel") {
		e.notify(ctx, logger, dm.ID, "Cancelled")
		return platform.Record{}, ErrEditCancelled
	}

	content := reply.Content
	if e.Enricher != nil {
		content, err = e.Enricher.Rewrite(ctx, content)
		if err != nil {
			return platform.Record{}, fmt.Errorf("enrich reply: %w", err)
		}
	}

	var edit platform.Edit
	if body, desc, ok := splitEmbedMarker(content); ok {
		edit = platform.Edit{
			Content: platform.StringPtr(e.emojify(body)),
			Embeds:  &[]platform.Embed{{Description: desc}},
		}
	} else {
		files, err := e.fetchFiles(ctx, reply.Attachments)
		if err != nil {
			return platform.Record{}, fmt.Errorf("carry reply attachments: %w", err)
		}
		if files == nil {
			files = []platform.FilePayload{}
		}
		edit = platform.Edit{
			Content:     platform.StringPtr(e.emojify(content)),
			Attachments: &files,
		}
	}

	rec, err := e.Log.Edit(ctx, channelID, messageID, edit)
	if err != nil {
		return platform.Record{}, fmt.Errorf("apply edit: %w", err)
	}
	e.notify(ctx, logger, dm.ID, "Successfully changed the message at "+rec.Link)
	logger.Info("interactive edit applied", slog.String("user_id", userID))
	return rec, nil
}

// notify sends a best-effort status DM.
func (e *Engine) notify(ctx context.Context, logger *slog.Logger, channelID, text string) {
	if _, err := e.Log.Send(ctx, channelID, platform.Outgoing{Content: text, SuppressEmbeds: true}); err != nil {
		logger.Warn("status dm failed", slog.Any("err", err))
	}
}

// splitEmbedMarker splits a reply on its first line equal to EMBED. Both
// halves are trimmed.
func splitEmbedMarker(s string) (content, embed string, ok bool) {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "EMBED" {
			content = strings.TrimSpace(strings.Join(lines[:i], "\n"))
			embed = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return content, embed, true
		}
	}
	return s, "", false
}
