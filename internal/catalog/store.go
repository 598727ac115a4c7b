package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/tunebot/internal/storage"
	"github.com/himanishpuri/tunebot/pkg/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("song not found")

type songRow struct {
	ID                  int64  `gorm:"primaryKey;autoIncrement"`
	FileID              string `gorm:"uniqueIndex;not null"`
	FileUniqueID        string `gorm:"uniqueIndex;not null"`
	Title               string `gorm:"not null"`
	Performer           string `gorm:"not null"`
	NormalizedTitle     string
	NormalizedPerformer string `gorm:"index"`
	IsCached            bool
}

func (songRow) TableName() string { return "songs" }

func (r songRow) record() models.SongRecord {
	return models.SongRecord{
		ID:              r.ID,
		FileID:          r.FileID,
		FileUniqueID:    r.FileUniqueID,
		Title:           r.Title,
		Performer:       r.Performer,
		NormalizedTitle: r.NormalizedTitle,
		IsCached:        r.IsCached,
	}
}

// Store is one corpus: a songs table plus its full-text index.
type Store struct {
	corpus models.Corpus
	client *storage.DBClient
}

// OpenStore opens the corpus database at dbPath, creating tables as needed.
func OpenStore(corpus models.Corpus, dbPath string) (*Store, error) {
	client, err := storage.Open(dbPath, &songRow{})
	if err != nil {
		return nil, fmt.Errorf("open %s corpus: %w", corpus, err)
	}
	s := &Store{corpus: corpus, client: client}
	if err := s.ensureFTS(); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Corpus() models.Corpus {
	return s.corpus
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.client.DB.WithContext(ctx)
}

// ExistsUnique reports whether a song with the given file-unique id is stored.
func (s *Store) ExistsUnique(ctx context.Context, fileUniqueID string) (bool, error) {
	var count int64
	err := s.db(ctx).Model(&songRow{}).Where("file_unique_id = ?", fileUniqueID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking file_unique_id: %w", err)
	}
	return count > 0, nil
}

// candidatesByPerformer returns up to limit rows whose normalized performer
// contains normPerformer.
func (s *Store) candidatesByPerformer(ctx context.Context, normPerformer string, limit int) ([]songRow, error) {
	q := s.db(ctx).Model(&songRow{})
	if normPerformer == "" {
		q = q.Where("normalized_performer = ''")
	} else {
		q = q.Where(`normalized_performer LIKE ? ESCAPE '\'`, "%"+escapeLike(normPerformer)+"%")
	}
	var rows []songRow
	if err := q.Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying performer candidates: %w", err)
	}
	return rows, nil
}

// insert writes the row and its index entry in one transaction. A uniqueness
// violation is returned unwrapped enough for storage.IsUniqueViolation.
func (s *Store) insert(ctx context.Context, row *songRow) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return tx.Exec(
			"INSERT INTO songs_fts(rowid, title, performer) VALUES (?, ?, ?)",
			row.ID, row.Title, row.Performer,
		).Error
	})
}

func (s *Store) GetByID(ctx context.Context, id int64) (*models.SongRecord, error) {
	var row songRow
	err := s.db(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting song %d: %w", id, err)
	}
	rec := row.record()
	return &rec, nil
}

// SetCached flips the cached flag, the only mutation a stored song allows.
func (s *Store) SetCached(ctx context.Context, id int64, cached bool) error {
	res := s.db(ctx).Model(&songRow{}).Where("id = ?", id).Update("is_cached", cached)
	if res.Error != nil {
		return fmt.Errorf("updating cached flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db(ctx).Model(&songRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return count, nil
}

// delete removes the row and its index entry together.
func (s *Store) delete(ctx context.Context, id int64) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM songs_fts WHERE rowid = ?", id).Error; err != nil {
			return fmt.Errorf("deleting index entry: %w", err)
		}
		res := tx.Delete(&songRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("deleting song: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) all(ctx context.Context) ([]songRow, error) {
	var rows []songRow
	if err := s.db(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	return rows, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
