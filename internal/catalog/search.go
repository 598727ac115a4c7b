package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/himanishpuri/tunebot/internal/fuzzy"
	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchLimit  = 50
	DefaultSearchCutoff = 65
)

// Engine answers inline lookups across every corpus.
type Engine struct {
	stores []*Store
	limit  int
	cutoff float64
	log    logger.Interface
}

func NewEngine(stores []*Store, limit int, cutoff float64, log logger.Interface) *Engine {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if cutoff <= 0 {
		cutoff = DefaultSearchCutoff
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{stores: stores, limit: limit, cutoff: cutoff, log: log}
}

// Search runs a full-text and a fuzzy lookup against each corpus
// concurrently and merges them: first occurrence of a song wins, cached songs
// come first. A failing lookup contributes nothing.
func (e *Engine) Search(ctx context.Context, query string) ([]models.SongMatch, error) {
	lookups := make([]func(context.Context) ([]models.SongMatch, error), 0, 2*len(e.stores))
	for _, s := range e.stores {
		lookups = append(lookups, func(ctx context.Context) ([]models.SongMatch, error) {
			return s.SearchText(ctx, query, e.limit)
		})
	}
	for _, s := range e.stores {
		lookups = append(lookups, func(ctx context.Context) ([]models.SongMatch, error) {
			return e.searchFuzzy(ctx, s, query)
		})
	}

	results := make([][]models.SongMatch, len(lookups))
	g, gctx := errgroup.WithContext(ctx)
	for i, lookup := range lookups {
		g.Go(func() error {
			matches, err := lookup(gctx)
			if err != nil {
				e.log.Warnf("catalog lookup %d failed: %v", i, err)
				return nil
			}
			results[i] = matches
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return merge(results, e.limit), nil
}

// searchFuzzy scores "performer - title" of every row against the query.
func (e *Engine) searchFuzzy(ctx context.Context, s *Store, query string) ([]models.SongMatch, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	rows, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	choices := make([]string, len(rows))
	for i, r := range rows {
		choices[i] = strings.ToLower(r.Performer + " - " + r.Title)
	}

	hits := fuzzy.Extract(q, choices, fuzzy.WRatio, e.cutoff, 2*e.limit)
	matches := make([]models.SongMatch, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, s.match(rows[h.Index]))
	}
	sortCachedFirst(matches)
	return matches, nil
}

func merge(results [][]models.SongMatch, limit int) []models.SongMatch {
	seen := make(map[string]struct{})
	merged := make([]models.SongMatch, 0)
	for _, set := range results {
		for _, m := range set {
			key := m.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, m)
		}
	}
	sortCachedFirst(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func sortCachedFirst(matches []models.SongMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].IsCached && !matches[j].IsCached
	})
}
