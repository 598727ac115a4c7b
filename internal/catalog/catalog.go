// Package catalog keeps the deduplicated song corpora and searches them.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
)

type Options struct {
	ChannelDBPath      string
	ChatDBPath         string
	AuditLogPath       string // channel deletions; empty disables
	DuplicateThreshold float64
	CandidateCap       int
	SearchLimit        int
	SearchCutoff       float64
	Logger             logger.Interface
}

// Catalog owns both corpora together with their Index and Engine.
type Catalog struct {
	*Index
	*Engine
	stores map[models.Corpus]*Store
}

func Open(opts Options) (*Catalog, error) {
	channel, err := OpenStore(models.CorpusChannel, opts.ChannelDBPath)
	if err != nil {
		return nil, err
	}
	chat, err := OpenStore(models.CorpusChat, opts.ChatDBPath)
	if err != nil {
		channel.Close()
		return nil, err
	}
	stores := []*Store{channel, chat}

	idx := NewIndex(stores, opts.DuplicateThreshold, opts.CandidateCap, opts.Logger)
	if opts.AuditLogPath != "" {
		idx.SetAuditLog(models.CorpusChannel, NewAuditLog(opts.AuditLogPath, filepath.Base(opts.ChannelDBPath)))
	}

	return &Catalog{
		Index:  idx,
		Engine: NewEngine(stores, opts.SearchLimit, opts.SearchCutoff, opts.Logger),
		stores: map[models.Corpus]*Store{
			models.CorpusChannel: channel,
			models.CorpusChat:    chat,
		},
	}, nil
}

// Store returns the store for one corpus.
func (c *Catalog) Store(corpus models.Corpus) (*Store, error) {
	s, ok := c.stores[corpus]
	if !ok {
		return nil, fmt.Errorf("unknown corpus %q", corpus)
	}
	return s, nil
}

// Ping checks that every corpus database still answers.
func (c *Catalog) Ping() error {
	for _, corpus := range []models.Corpus{models.CorpusChannel, models.CorpusChat} {
		s := c.stores[corpus]
		if err := s.client.Ping(); err != nil {
			return fmt.Errorf("%s corpus at %s: %w", corpus, s.client.Path(), err)
		}
	}
	return nil
}

func (c *Catalog) Close() error {
	var errs []error
	for _, s := range c.stores {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
