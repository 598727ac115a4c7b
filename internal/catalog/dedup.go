package catalog

import (
	"context"
	"fmt"

	"github.com/himanishpuri/tunebot/internal/fuzzy"
	"github.com/himanishpuri/tunebot/internal/normalize"
	"github.com/himanishpuri/tunebot/internal/storage"
	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
)

const (
	DefaultDuplicateThreshold = 90
	DefaultCandidateCap       = 200
)

// Index is the per-corpus duplicate detector sitting in front of inserts.
type Index struct {
	stores       map[models.Corpus]*Store
	audit        map[models.Corpus]*AuditLog
	threshold    float64
	candidateCap int
	log          logger.Interface
}

func NewIndex(stores []*Store, threshold float64, candidateCap int, log logger.Interface) *Index {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}
	if candidateCap <= 0 {
		candidateCap = DefaultCandidateCap
	}
	if log == nil {
		log = logger.GetLogger()
	}
	byCorpus := make(map[models.Corpus]*Store, len(stores))
	for _, s := range stores {
		byCorpus[s.Corpus()] = s
	}
	return &Index{
		stores:       byCorpus,
		audit:        make(map[models.Corpus]*AuditLog),
		threshold:    threshold,
		candidateCap: candidateCap,
		log:          log,
	}
}

// SetAuditLog enables deletion auditing for one corpus.
func (x *Index) SetAuditLog(corpus models.Corpus, a *AuditLog) {
	x.audit[corpus] = a
}

func (x *Index) store(corpus models.Corpus) (*Store, error) {
	s, ok := x.stores[corpus]
	if !ok {
		return nil, fmt.Errorf("unknown corpus %q", corpus)
	}
	return s, nil
}

// IndexIfNew inserts the song unless it duplicates an existing one, either by
// file-unique id or by a near-identical title from the same performer.
func (x *Index) IndexIfNew(ctx context.Context, corpus models.Corpus, fileID, fileUniqueID, title, performer string) models.IndexOutcome {
	s, err := x.store(corpus)
	if err != nil {
		x.log.Errorf("index: %v", err)
		return models.IndexError
	}

	exists, err := s.ExistsUnique(ctx, fileUniqueID)
	if err != nil {
		x.log.Errorf("index %s: %v", corpus, err)
		return models.IndexError
	}
	if exists {
		x.log.Debugf("Exact duplicate in %s: %s", corpus, fileUniqueID)
		return models.DuplicateExact
	}

	normTitle := normalize.Normalize(title)
	normPerformer := normalize.Normalize(performer)

	if !normalize.IsAlternateVersion(title) {
		dup, err := x.fuzzyDuplicate(ctx, s, normTitle, normPerformer)
		if err != nil {
			x.log.Errorf("index %s: %v", corpus, err)
			return models.IndexError
		}
		if dup != nil {
			x.log.Debugf("Fuzzy duplicate in %s: %q ~ %q (ID:%d)", corpus, title, dup.Title, dup.ID)
			return models.DuplicateFuzzy
		}
	}

	row := &songRow{
		FileID:              fileID,
		FileUniqueID:        fileUniqueID,
		Title:               title,
		Performer:           performer,
		NormalizedTitle:     normTitle,
		NormalizedPerformer: normPerformer,
		IsCached:            true,
	}
	err = s.insert(ctx, row)
	if isMissingTable(err) {
		if _, err = s.RebuildIndex(ctx); err == nil {
			row.ID = 0
			err = s.insert(ctx, row)
		}
	}
	if storage.IsUniqueViolation(err) {
		x.log.Debugf("Exact duplicate in %s on insert: %s", corpus, fileUniqueID)
		return models.DuplicateExact
	}
	if err != nil {
		x.log.Errorf("index %s: inserting %q: %v", corpus, title, err)
		return models.IndexError
	}

	x.log.Infof("Indexed in %s: %s - %s (ID:%d)", corpus, performer, title, row.ID)
	return models.Indexed
}

func (x *Index) fuzzyDuplicate(ctx context.Context, s *Store, normTitle, normPerformer string) (*songRow, error) {
	candidates, err := s.candidatesByPerformer(ctx, normPerformer, x.candidateCap)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if fuzzy.TokenSetRatio(normTitle, candidates[i].NormalizedTitle) >= x.threshold {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// RemoveRecord deletes a song and its index entry. Channel deletions are
// written to the audit log first.
func (x *Index) RemoveRecord(ctx context.Context, corpus models.Corpus, id int64) error {
	s, err := x.store(corpus)
	if err != nil {
		return err
	}
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if audit := x.audit[corpus]; audit != nil {
		if err := audit.Record(rec); err != nil {
			x.log.Errorf("audit %s: %v", corpus, err)
		}
	}
	if err := s.delete(ctx, id); err != nil {
		return err
	}
	x.log.Infof("Removed from %s: %s - %s (ID:%d)", corpus, rec.Performer, rec.Title, id)
	return nil
}
