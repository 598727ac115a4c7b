// Package bot is the transport-agnostic request pipeline: access policy,
// throttling and the message, button, inline and channel handlers.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/himanishpuri/tunebot/internal/session"
	"github.com/himanishpuri/tunebot/pkg/logger"
)

const (
	DefaultNotRightTimeout = 60 * time.Second
	DefaultErrorTTL        = 5 * time.Second
	maxAlternatives        = 10
	alternativeTitleLen    = 40
	maxInlineResults       = 50
)

type Options struct {
	Policy           Policy
	MessageInterval  time.Duration
	CallbackInterval time.Duration
	MaxDurationMin   int
	MaxFileSizeMB    int64
	StorageChannelID int64 // 0 disables channel indexing
	InlineEnabled    bool
	NotRightTimeout  time.Duration
	ErrorTTL         time.Duration
	Now              func() time.Time
	Logger           logger.Interface
}

type Bot struct {
	transport  Transport
	fetcher    Fetcher
	catalog    Catalog
	cache      session.Cache
	reputation Reputation
	opts       Options
	log        logger.Interface

	onQuery    Handler[queryRequest]
	onCallback Handler[Callback]

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// queryRequest is a message that passed the access and prefix checks.
type queryRequest struct {
	Message
	Query string
}

func New(t Transport, f Fetcher, c Catalog, cache session.Cache, rep Reputation, opts Options) *Bot {
	if opts.NotRightTimeout <= 0 {
		opts.NotRightTimeout = DefaultNotRightTimeout
	}
	if opts.ErrorTTL <= 0 {
		opts.ErrorTTL = DefaultErrorTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	b := &Bot{
		transport:  t,
		fetcher:    f,
		catalog:    c,
		cache:      cache,
		reputation: rep,
		opts:       opts,
		log:        opts.Logger,
		done:       make(chan struct{}),
	}

	requests := NewRequestLog(opts.Now)
	b.onQuery = Throttled(
		NewThrottle(requests, opts.MessageInterval, false),
		func(r queryRequest) int64 { return r.From.ID },
		b.handleQuery,
	)
	b.onCallback = Throttled(
		NewThrottle(requests, opts.CallbackInterval, true),
		func(cq Callback) int64 { return cq.From.ID },
		b.routeCallback,
	)
	return b
}

// after runs fn once d has elapsed unless the bot is closed first.
func (b *Bot) after(d time.Duration, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn(context.Background())
		case <-b.done:
		}
	}()
}

// Wait blocks until scheduled follow-ups have run.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Close cancels pending follow-ups and waits for running ones.
func (b *Bot) Close() {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
}
