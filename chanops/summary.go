package chanops

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/marovik/scribe/platform"
)

// titleRe captures a bold-delimited title at the start of a record. Greedy
// on purpose: "**# Raids** and **more**" titles keep their inner markup.
var titleRe = regexp.MustCompile(`^(\*\*.*\*\*)`)

// titleOf returns the record's leading bold segment, or "".
func titleOf(content string) string {
	m := titleRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return m[1]
}

// Summary scans the channel oldest first and sends one embed record listing
// every titled record as a jump link. The scanned records are not touched.
func (e *Engine) Summary(ctx context.Context, channelID string) (platform.Record, error) {
	var b strings.Builder
	it := e.Log.History(channelID, true)
	for it.Next(ctx) {
		r := it.Record()
		title := titleOf(r.Content)
		if title == "" {
			continue
		}
		entry := strings.TrimSpace(strings.ReplaceAll(title, "#", ""))
		fmt.Fprintf(&b, "[%s](%s)\n", entry, r.Link)
	}
	if err := it.Err(); err != nil {
		return platform.Record{}, fmt.Errorf("scan channel: %w", err)
	}

	out := platform.Outgoing{
		Embeds: []platform.Embed{{Title: e.summaryTitle(), Description: b.String()}},
	}
	rec, err := e.Log.Send(ctx, channelID, out)
	if err != nil {
		return platform.Record{}, fmt.Errorf("send table of contents: %w", err)
	}
	return rec, nil
}
