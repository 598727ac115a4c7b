package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	blockedCacheTime = 300 * time.Second
	emptyCacheTime   = 5 * time.Second
	resultsCacheTime = time.Hour
	fallbackTime     = time.Second
)

// HandleInline answers inline lookups from the catalog. Only songs the
// transport can re-serve by file id are offered.
func (b *Bot) HandleInline(ctx context.Context, q InlineQuery) error {
	if !b.opts.InlineEnabled {
		return nil
	}
	if b.opts.Policy.Blocked(q.From.ID) {
		return b.transport.AnswerInline(ctx, q.ID, nil, true, blockedCacheTime)
	}
	text := strings.TrimSpace(q.Query)
	if text == "" {
		return b.transport.AnswerInline(ctx, q.ID, nil, false, emptyCacheTime)
	}

	matches, err := b.catalog.Search(ctx, text)
	if err != nil {
		b.log.Warnf("inline search %q: %v", text, err)
	}

	results := make([]InlineResult, 0, len(matches))
	for _, m := range matches {
		if !m.IsCached || m.FileID == "" {
			continue
		}
		title := m.Title
		if title == "" {
			title = InlineTitleEmpty
		}
		results = append(results, InlineResult{
			ID:        m.Key(),
			FileID:    m.FileID,
			Title:     fmt.Sprintf("[%s] %s", m.Corpus.Label(), title),
			Performer: m.Performer,
		})
		if len(results) == maxInlineResults {
			break
		}
	}

	if err := b.transport.AnswerInline(ctx, q.ID, results, false, resultsCacheTime); err != nil {
		b.log.Errorf("inline answer failed: %v", err)
		return b.transport.AnswerInline(ctx, q.ID, nil, false, fallbackTime)
	}
	return nil
}
