package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/internal/storage"
	"github.com/himanishpuri/tunebot/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cacheRow struct {
	SessionKey string `gorm:"primaryKey"`
	MessageRef *int64
	Meta       string `gorm:"not null"`
	CreatedAt  int64  `gorm:"index;autoCreateTime:false"` // unix nanoseconds
}

func (cacheRow) TableName() string { return "song_cache" }

// SQLiteCache keeps entries in a single table and reclaims expired rows on
// SweepExpired.
type SQLiteCache struct {
	client *storage.DBClient
	ttl    time.Duration
	now    func() time.Time
}

func OpenSQLite(dbPath string, ttl time.Duration, opts ...Option) (*SQLiteCache, error) {
	client, err := storage.Open(dbPath, &cacheRow{})
	if err != nil {
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	o := buildOptions(opts)
	return &SQLiteCache{client: client, ttl: ttl, now: o.now}, nil
}

func (c *SQLiteCache) db(ctx context.Context) *gorm.DB {
	return c.client.DB.WithContext(ctx)
}

// Put upserts the entry and refreshes its timestamp. A nil messageRef keeps
// the reference already stored for key.
func (c *SQLiteCache) Put(ctx context.Context, key string, messageRef *int64, meta models.SessionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding session meta: %w", err)
	}
	row := cacheRow{
		SessionKey: key,
		MessageRef: messageRef,
		Meta:       string(data),
		CreatedAt:  c.now().UnixNano(),
	}
	err = c.db(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"meta":        gorm.Expr("excluded.meta"),
			"created_at":  gorm.Expr("excluded.created_at"),
			"message_ref": gorm.Expr("COALESCE(excluded.message_ref, song_cache.message_ref)"),
		}),
	}).Create(&row).Error
	if err != nil {
		return apperr.New(apperr.StorageError, fmt.Errorf("saving session %q: %w", key, err))
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (*models.SessionEntry, error) {
	var row cacheRow
	err := c.db(ctx).Where("session_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errMissing(key)
	}
	if err != nil {
		return nil, apperr.New(apperr.StorageError, fmt.Errorf("loading session %q: %w", key, err))
	}

	createdAt := time.Unix(0, row.CreatedAt)
	if expired(createdAt, c.now(), c.ttl) {
		return nil, errMissing(key)
	}

	var meta models.SessionMeta
	if err := json.Unmarshal([]byte(row.Meta), &meta); err != nil {
		return nil, apperr.New(apperr.StorageError, fmt.Errorf("decoding session %q: %w", key, err))
	}
	return &models.SessionEntry{
		Key:        row.SessionKey,
		MessageRef: row.MessageRef,
		Meta:       meta,
		CreatedAt:  createdAt,
	}, nil
}

// SetMessageRef records the sent message for a live entry without touching
// its timestamp.
func (c *SQLiteCache) SetMessageRef(ctx context.Context, key string, messageRef int64) error {
	minCreated := c.now().Add(-c.ttl).UnixNano()
	res := c.db(ctx).Model(&cacheRow{}).
		Where("session_key = ? AND created_at >= ?", key, minCreated).
		Update("message_ref", messageRef)
	if res.Error != nil {
		return apperr.New(apperr.StorageError, fmt.Errorf("updating session %q: %w", key, res.Error))
	}
	if res.RowsAffected == 0 {
		return errMissing(key)
	}
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if err := c.db(ctx).Where("session_key = ?", key).Delete(&cacheRow{}).Error; err != nil {
		return apperr.New(apperr.StorageError, fmt.Errorf("deleting session %q: %w", key, err))
	}
	return nil
}

// SweepExpired deletes every row older than the TTL and returns the count.
func (c *SQLiteCache) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl).UnixNano()
	res := c.db(ctx).Where("created_at < ?", cutoff).Delete(&cacheRow{})
	if res.Error != nil {
		return 0, apperr.New(apperr.StorageError, fmt.Errorf("sweeping sessions: %w", res.Error))
	}
	return res.RowsAffected, nil
}

func (c *SQLiteCache) Close() error {
	return c.client.Close()
}
