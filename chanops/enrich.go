package chanops

import (
	"context"
	"fmt"

	"github.com/marovik/scribe/platform"
)

// EnrichRecord rewrites the catalog links of one service-owned record and
// edits it in place when the rewrite changed anything. Returns the record
// and whether an edit was written.
func (e *Engine) EnrichRecord(ctx context.Context, channelID, messageID string) (platform.Record, bool, error) {
	if e.Enricher == nil {
		return platform.Record{}, false, fmt.Errorf("catalog credentials are not configured: %w", ErrInput)
	}
	r, err := e.Log.Message(ctx, channelID, messageID)
	if err != nil {
		return platform.Record{}, false, fmt.Errorf("fetch record %s: %w", messageID, err)
	}
	if !e.owns(r) {
		return platform.Record{}, false, fmt.Errorf("record %s is not owned by the service: %w", messageID, ErrInput)
	}

	rewritten, err := e.Enricher.Rewrite(ctx, r.Content)
	if err != nil {
		return platform.Record{}, false, fmt.Errorf("enrich record %s: %w", messageID, err)
	}
	if rewritten == r.Content {
		return r, false, nil
	}

	rec, err := e.Log.Edit(ctx, channelID, messageID, platform.Edit{Content: platform.StringPtr(rewritten)})
	if err != nil {
		return platform.Record{}, false, fmt.Errorf("write enriched content: %w", err)
	}
	return rec, true, nil
}
