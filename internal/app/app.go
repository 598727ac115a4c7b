// Package app builds the long-lived service object: both corpora, the
// interaction cache, the fetch coordinator and its collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/himanishpuri/tunebot/internal/audio"
	"github.com/himanishpuri/tunebot/internal/bot"
	"github.com/himanishpuri/tunebot/internal/catalog"
	"github.com/himanishpuri/tunebot/internal/config"
	"github.com/himanishpuri/tunebot/internal/extractor"
	"github.com/himanishpuri/tunebot/internal/fetch"
	"github.com/himanishpuri/tunebot/internal/reputation"
	"github.com/himanishpuri/tunebot/internal/session"
	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/himanishpuri/tunebot/pkg/utils"
)

type settings struct {
	logger    logger.Interface
	extractor extractor.Extractor
	now       func() time.Time
}

type Option func(*settings)

func WithLogger(log logger.Interface) Option {
	return func(s *settings) {
		s.logger = log
	}
}

// WithExtractor replaces the yt-dlp extractor. The executable is then
// neither looked up nor installed.
func WithExtractor(ex extractor.Extractor) Option {
	return func(s *settings) {
		s.extractor = ex
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

type Service struct {
	cfg        *config.Config
	log        logger.Interface
	catalog    *catalog.Catalog
	cache      session.Cache
	fetcher    *fetch.Coordinator
	reputation *reputation.Client
	startedAt  time.Time
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	st := &settings{now: time.Now}
	for _, opt := range opts {
		opt(st)
	}
	if st.logger == nil {
		st.logger = logger.GetLogger()
	}
	log := st.logger

	if err := utils.MakeDir(cfg.TempPath); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	cat, err := catalog.Open(catalog.Options{
		ChannelDBPath:      cfg.ChannelDBPath(),
		ChatDBPath:         cfg.ChatDBPath(),
		AuditLogPath:       cfg.DeletedSongsLogPath(),
		DuplicateThreshold: float64(cfg.FuzzyDuplicateThreshold),
		CandidateCap:       cfg.FuzzyCandidateCap,
		SearchLimit:        cfg.SearchLimit,
		SearchCutoff:       float64(cfg.SearchFuzzyCutoff),
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	cache, err := openCache(ctx, cfg, st.now)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("opening interaction cache: %w", err)
	}
	if n, err := cache.SweepExpired(ctx); err != nil {
		log.Warnf("startup cache sweep failed: %v", err)
	} else {
		log.Infof("Removed %d expired cache entries", n)
	}

	ex := st.extractor
	if ex == nil {
		exe, err := extractor.ResolveExecutable(ctx, cfg.YTDLPPath, cfg.YTDLPAutoInstall)
		if err != nil {
			// catalog and cache keep working; every fetch fails
			log.Errorf("yt-dlp unavailable: %v", err)
			ex = extractor.Unavailable{Err: err}
		} else {
			log.Infof("Using yt-dlp at %s", exe)
			ex = extractor.NewYTDLP(exe, log)
		}
	}

	fopts := fetch.Options{
		Limit:       cfg.ConcurrentDownloadLimit,
		MaxDuration: cfg.MaxDurationSeconds(),
		MaxSize:     cfg.MaxFileSizeBytes(),
		TempDir:     cfg.TempPath,
		Logger:      log,
	}
	if cfg.PrecheckBackend == "native" {
		fopts.Resolver = extractor.NewNativeResolver()
	}
	if cfg.ProbeAudio {
		fopts.Prober = audio.NewFFProbe()
	}
	if cfg.TranscodeAudio {
		fopts.Transcoder = audio.NewFFmpeg()
	}

	return &Service{
		cfg:        cfg,
		log:        log,
		catalog:    cat,
		cache:      cache,
		fetcher:    fetch.New(ex, fopts),
		reputation: reputation.New(cfg.DislikeAPIURL, cfg.DislikeTimeout, log),
		startedAt:  st.now(),
	}, nil
}

func openCache(ctx context.Context, cfg *config.Config, now func() time.Time) (session.Cache, error) {
	if cfg.CacheBackend == "redis" {
		return session.OpenRedis(ctx, cfg.RedisURL, cfg.CacheTTL(), session.WithClock(now))
	}
	return session.OpenSQLite(cfg.CacheDBPath(), cfg.CacheTTL(), session.WithClock(now))
}

func (s *Service) Catalog() *catalog.Catalog      { return s.catalog }
func (s *Service) Cache() session.Cache           { return s.cache }
func (s *Service) Fetcher() *fetch.Coordinator    { return s.fetcher }
func (s *Service) Reputation() *reputation.Client { return s.reputation }

// Bot assembles the request pipeline on top of t.
func (s *Service) Bot(t bot.Transport) (*bot.Bot, error) {
	chats, err := s.cfg.ChatPolicy()
	if err != nil {
		return nil, err
	}
	return bot.New(t, s.fetcher, s.catalog, s.cache, s.reputation, bot.Options{
		Policy:           bot.NewPolicy(chats, s.cfg.AllowPrivateChat, s.cfg.BlockedUserIDs, s.startedAt),
		MessageInterval:  s.cfg.AntiSpamInterval,
		CallbackInterval: s.cfg.AntiSpamCallbackInterval,
		MaxDurationMin:   s.cfg.MaxSongDurationMin,
		MaxFileSizeMB:    s.cfg.MaxFileSizeMB,
		StorageChannelID: s.cfg.MusicStorageChannelID,
		InlineEnabled:    s.cfg.EnableInlineSearch,
		Logger:           s.log,
	}), nil
}

// Fetched is a completed fetch recorded in the interaction cache.
type Fetched struct {
	Key       string             `json:"key"`
	Meta      models.SessionMeta `json:"meta"`
	SavedPath string             `json:"saved_path,omitempty"`
}

// Fetch acquires query (a search phrase or URL), records it under a new
// session key and releases the working files. When outDir is set the audio
// is moved there first.
func (s *Service) Fetch(ctx context.Context, query string, requesterID int64, outDir string) (*Fetched, error) {
	res, err := s.fetcher.FetchByQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	defer res.Release()

	out := &Fetched{Key: utils.NewSessionKey()}
	if outDir != "" {
		if err := utils.MakeDir(outDir); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s - %s%s", res.Uploader, res.Title, filepath.Ext(res.AudioPath))
		out.SavedPath = filepath.Join(outDir, utils.SafeFilename(name))
		if err := utils.MoveFile(res.AudioPath, out.SavedPath); err != nil {
			return nil, fmt.Errorf("saving audio: %w", err)
		}
	}

	meta := models.MetaFromFetch(res)
	meta.Query = query
	meta.RequesterID = requesterID
	meta.DislikeCount = s.reputation.Dislikes(ctx, res.ExternalID)
	// the working files are gone once this returns
	meta.AudioPath, meta.ThumbnailPath = out.SavedPath, ""
	out.Meta = meta

	if err := s.cache.Put(ctx, out.Key, nil, meta); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Session(ctx context.Context, key string) (*models.SessionEntry, error) {
	return s.cache.Get(ctx, key)
}

func (s *Service) DeleteSession(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, key)
}

func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.cache.SweepExpired(ctx)
}

func (s *Service) Search(ctx context.Context, query string) ([]models.SongMatch, error) {
	return s.catalog.Search(ctx, query)
}

func (s *Service) Candidates(ctx context.Context, query string) []models.MediaCandidate {
	return s.fetcher.Search(ctx, query)
}

func (s *Service) Index(ctx context.Context, corpus models.Corpus, fileID, fileUniqueID, title, performer string) models.IndexOutcome {
	return s.catalog.IndexIfNew(ctx, corpus, fileID, fileUniqueID, title, performer)
}

func (s *Service) Remove(ctx context.Context, corpus models.Corpus, id int64) error {
	return s.catalog.RemoveRecord(ctx, corpus, id)
}

func (s *Service) SetCached(ctx context.Context, corpus models.Corpus, id int64, cached bool) error {
	st, err := s.catalog.Store(corpus)
	if err != nil {
		return err
	}
	return st.SetCached(ctx, id, cached)
}

func (s *Service) RebuildIndex(ctx context.Context, corpus models.Corpus) (int64, error) {
	st, err := s.catalog.Store(corpus)
	if err != nil {
		return 0, err
	}
	return st.RebuildIndex(ctx)
}

// Counts reports the number of songs in each corpus.
func (s *Service) Counts(ctx context.Context) (map[models.Corpus]int64, error) {
	counts := make(map[models.Corpus]int64, 2)
	for _, corpus := range []models.Corpus{models.CorpusChannel, models.CorpusChat} {
		st, err := s.catalog.Store(corpus)
		if err != nil {
			return nil, err
		}
		n, err := st.Count(ctx)
		if err != nil {
			return nil, err
		}
		counts[corpus] = n
	}
	return counts, nil
}

// Ping reports whether the corpus databases are reachable.
func (s *Service) Ping() error {
	return s.catalog.Ping()
}

func (s *Service) Close() error {
	return errors.Join(s.cache.Close(), s.catalog.Close())
}
