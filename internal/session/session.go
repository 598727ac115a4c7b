// Package session is the short-lived interaction cache that ties button
// presses back to the fetch that produced a message.
package session

import (
	"context"
	"time"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/pkg/models"
)

// Cache stores SessionEntry values for a bounded time. Get on an expired or
// unknown key fails with apperr.CacheExpiredOrMissing.
type Cache interface {
	Put(ctx context.Context, key string, messageRef *int64, meta models.SessionMeta) error
	Get(ctx context.Context, key string) (*models.SessionEntry, error)
	SetMessageRef(ctx context.Context, key string, messageRef int64) error
	Delete(ctx context.Context, key string) error
	SweepExpired(ctx context.Context) (int64, error)
	Close() error
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func errMissing(key string) error {
	return apperr.Newf(apperr.CacheExpiredOrMissing, "session %q", key)
}

// expired reports whether an entry created at createdAt has outlived ttl.
func expired(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) > ttl
}
