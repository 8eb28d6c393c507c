// Package enrich rewrites bare wowhead item links in record content into
// named markdown links, resolving display names through the catalog.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marovik/scribe/telemetry"
)

var (
	// bareLink matches a raw item URL. The id capture is what the catalog
	// resolves; trailing URL junk (slugs, query params) rides along and is
	// replaced together with the rest of the match.
	bareLink = regexp.MustCompile(`https://(?:www\.)?wowhead\.com/[^\s)]*item=(\d+)[^\s)]*`)

	// resolvedLink matches a link that already carries a display name.
	// These spans are blanked out before scanning so their URLs are never
	// resolved twice, which keeps the rewrite idempotent.
	resolvedLink = regexp.MustCompile(`\[[^\]]*\]\(https://(?:www\.)?wowhead\.com/[^)]*item=\d+[^)]*\)`)
)

// NameSource resolves item ids to display names. *catalog.Client
// satisfies it.
type NameSource interface {
	Token(ctx context.Context) (string, error)
	ItemName(ctx context.Context, token string, id int) (string, error)
}

// Rewriter resolves bare item links concurrently with a bounded worker
// pool.
type Rewriter struct {
	Source  NameSource
	Workers int
}

type span struct {
	start int
	end   int
	id    int
}

// Rewrite returns content with every bare item link replaced by
// [name](canonical-url). Content without bare links is returned as is
// without touching the network. A token failure aborts the whole call;
// individual lookup failures leave that link bare so a later run can
// retry it.
func (rw *Rewriter) Rewrite(ctx context.Context, content string) (string, error) {
	spans := collectSpans(content)
	if len(spans) == 0 {
		return content, nil
	}

	// First occurrence wins; later duplicates reuse the same lookup.
	var ids []int
	seen := make(map[int]bool)
	for _, sp := range spans {
		if !seen[sp.id] {
			seen[sp.id] = true
			ids = append(ids, sp.id)
		}
	}

	token, err := rw.Source.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("catalog token: %w", err)
	}

	names := rw.lookupAll(ctx, token, ids)

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(content[last:sp.start])
		if name, ok := names[sp.id]; ok {
			fmt.Fprintf(&b, "[%s](https://www.wowhead.com/item=%d)", name, sp.id)
		} else {
			b.WriteString(content[sp.start:sp.end])
		}
		last = sp.end
	}
	b.WriteString(content[last:])
	return b.String(), nil
}

// collectSpans finds bare link spans. Already-resolved links are blanked
// with equal-length padding first so byte offsets into the original
// content stay valid.
func collectSpans(content string) []span {
	blanked := resolvedLink.ReplaceAllStringFunc(content, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	matches := bareLink.FindAllStringSubmatchIndex(blanked, -1)
	spans := make([]span, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(blanked[m[2]:m[3]])
		if err != nil {
			continue
		}
		spans = append(spans, span{start: m[0], end: m[1], id: id})
	}
	return spans
}

func (rw *Rewriter) lookupAll(ctx context.Context, token string, ids []int) map[int]string {
	workers := rw.Workers
	if workers <= 0 {
		workers = 8
	}

	var mu sync.Mutex
	names := make(map[int]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			telemetry.EnrichLookups.Inc()
			name, err := rw.Source.ItemName(gctx, token, id)
			if err != nil {
				telemetry.EnrichLookupFailures.Inc()
				slog.Warn("item lookup failed, leaving link bare",
					slog.Int("item", id),
					slog.Any("err", err))
				return nil
			}
			mu.Lock()
			names[id] = name
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return names
}
