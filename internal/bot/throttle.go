package bot

import (
	"context"
	"sync"
	"time"
)

// Handler is one stage of the request pipeline.
type Handler[T any] func(ctx context.Context, in T) error

// RequestLog remembers when each user was last served. Message and callback
// throttles share one log.
type RequestLog struct {
	mu   sync.Mutex
	last map[int64]time.Time
	now  func() time.Time
}

func NewRequestLog(now func() time.Time) *RequestLog {
	if now == nil {
		now = time.Now
	}
	return &RequestLog{last: make(map[int64]time.Time), now: now}
}

// Throttle drops requests arriving within interval of the user's previous
// one. With refreshOnDrop a dropped request still restarts the interval.
type Throttle struct {
	log           *RequestLog
	interval      time.Duration
	refreshOnDrop bool
}

func NewThrottle(log *RequestLog, interval time.Duration, refreshOnDrop bool) Throttle {
	return Throttle{log: log, interval: interval, refreshOnDrop: refreshOnDrop}
}

func (t Throttle) Allow(userID int64) bool {
	t.log.mu.Lock()
	defer t.log.mu.Unlock()

	now := t.log.now()
	if prev, ok := t.log.last[userID]; ok && now.Sub(prev) < t.interval {
		if t.refreshOnDrop {
			t.log.last[userID] = now
		}
		return false
	}
	t.log.last[userID] = now
	return true
}

// Throttled wraps next so that requests t rejects return nil without
// reaching it.
func Throttled[T any](t Throttle, userOf func(T) int64, next Handler[T]) Handler[T] {
	return func(ctx context.Context, in T) error {
		if !t.Allow(userOf(in)) {
			return nil
		}
		return next(ctx, in)
	}
}
