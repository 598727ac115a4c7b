package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/himanishpuri/tunebot/pkg/models"
	"gorm.io/gorm"
)

const minQueryLength = 2

var queryPunct = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

func (s *Store) ensureFTS() error {
	err := s.client.DB.Exec(
		"CREATE VIRTUAL TABLE IF NOT EXISTS songs_fts USING fts5(title, performer, tokenize='trigram')",
	).Error
	if err != nil {
		return fmt.Errorf("creating songs_fts: %w", err)
	}
	return nil
}

// RebuildIndex repopulates the full-text index from the songs table and
// returns the number of indexed rows.
func (s *Store) RebuildIndex(ctx context.Context) (int64, error) {
	if err := s.ensureFTS(); err != nil {
		return 0, err
	}
	var indexed int64
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM songs_fts").Error; err != nil {
			return err
		}
		res := tx.Exec("INSERT INTO songs_fts(rowid, title, performer) SELECT id, title, performer FROM songs")
		if res.Error != nil {
			return res.Error
		}
		indexed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rebuilding songs_fts: %w", err)
	}
	return indexed, nil
}

// indexStale reports whether the index has no entries while songs exist.
func (s *Store) indexStale(ctx context.Context) (bool, error) {
	var songs, indexed int64
	if err := s.db(ctx).Raw("SELECT count(*) FROM songs").Scan(&songs).Error; err != nil {
		return false, err
	}
	if songs == 0 {
		return false, nil
	}
	if err := s.db(ctx).Raw("SELECT count(*) FROM songs_fts").Scan(&indexed).Error; err != nil {
		return false, err
	}
	return indexed == 0, nil
}

// sanitizeQuery strips punctuation and collapses whitespace. It returns ""
// for queries too short to be selective.
func sanitizeQuery(q string) string {
	q = queryPunct.ReplaceAllString(q, " ")
	q = strings.Join(strings.Fields(q), " ")
	if utf8.RuneCountInString(q) < minQueryLength {
		return ""
	}
	return q
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// SearchText runs a full-text lookup ordered by relevance, cached first on
// ties. The index is rebuilt when found empty or missing.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]models.SongMatch, error) {
	q := sanitizeQuery(query)
	if q == "" {
		return nil, nil
	}

	stale, err := s.indexStale(ctx)
	if err != nil && !isMissingTable(err) {
		return nil, fmt.Errorf("checking songs_fts: %w", err)
	}
	if stale || isMissingTable(err) {
		if _, err := s.RebuildIndex(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := s.matchText(ctx, q, limit)
	if isMissingTable(err) {
		if _, rerr := s.RebuildIndex(ctx); rerr != nil {
			return nil, rerr
		}
		rows, err = s.matchText(ctx, q, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}

	matches := make([]models.SongMatch, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, s.match(r))
	}
	return matches, nil
}

func (s *Store) matchText(ctx context.Context, q string, limit int) ([]songRow, error) {
	var rows []songRow
	err := s.db(ctx).Raw(`
		SELECT s.id, s.file_id, s.title, s.performer, s.is_cached
		FROM songs_fts
		JOIN songs s ON s.id = songs_fts.rowid
		WHERE songs_fts MATCH ?
		ORDER BY rank, s.is_cached DESC
		LIMIT ?`, matchExpr(q), limit).Scan(&rows).Error
	return rows, err
}

// matchExpr quotes every word of a sanitized query as its own term. All terms
// must match, in any order and any column.
func matchExpr(q string) string {
	words := strings.Fields(q)
	for i, w := range words {
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}

func (s *Store) match(r songRow) models.SongMatch {
	return models.SongMatch{
		Corpus:    s.corpus,
		SongID:    r.ID,
		FileID:    r.FileID,
		Title:     r.Title,
		Performer: r.Performer,
		IsCached:  r.IsCached,
	}
}
