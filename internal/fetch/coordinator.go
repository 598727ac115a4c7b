// Package fetch admits, prechecks and downloads media items under a
// process-wide concurrency limit.
package fetch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/internal/audio"
	"github.com/himanishpuri/tunebot/internal/extractor"
	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/himanishpuri/tunebot/pkg/utils"
	"golang.org/x/sync/semaphore"
)

const (
	CanonicalExt       = ".mp3"
	DefaultSearchLimit = 10
	DefaultTitle       = "Untitled Song"
	DefaultUploader    = "unknown"
)

// Prober detects files without an audio stream.
type Prober interface {
	Probe(ctx context.Context, path string) (*audio.StreamInfo, error)
}

// Transcoder re-encodes audio that did not arrive as MP3.
type Transcoder interface {
	TranscodeMP3(ctx context.Context, inputPath, outputPath string) error
}

type Options struct {
	Limit       int64   // fetches in flight at once
	MaxDuration float64 // seconds; 0 disables
	MaxSize     int64   // bytes; 0 disables
	TempDir     string
	SearchLimit int
	// Resolver answers prechecks; the extractor itself when nil.
	Resolver extractor.Resolver
	// Prober, when set, rejects downloads without an audio stream.
	Prober Prober
	// Transcoder, when set, re-encodes instead of renaming.
	Transcoder Transcoder
	Logger     logger.Interface
}

// Coordinator is the only way the rest of the system obtains media files.
type Coordinator struct {
	ex          extractor.Extractor
	resolver    extractor.Resolver
	prober      Prober
	transcoder  Transcoder
	gate        *semaphore.Weighted
	maxDuration float64
	maxSize     int64
	tempDir     string
	searchLimit int
	log         logger.Interface
}

func New(ex extractor.Extractor, opts Options) *Coordinator {
	if opts.Limit <= 0 {
		opts.Limit = 1
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.Resolver == nil {
		opts.Resolver = ex
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Coordinator{
		ex:          ex,
		resolver:    opts.Resolver,
		prober:      opts.Prober,
		transcoder:  opts.Transcoder,
		gate:        semaphore.NewWeighted(opts.Limit),
		maxDuration: opts.MaxDuration,
		maxSize:     opts.MaxSize,
		tempDir:     opts.TempDir,
		searchLimit: opts.SearchLimit,
		log:         opts.Logger,
	}
}

// FetchByQuery downloads the top search hit for query, or query itself when
// it is a URL.
func (c *Coordinator) FetchByQuery(ctx context.Context, query string) (*models.FetchResult, error) {
	if utils.IsURL(query) {
		return c.FetchByURL(ctx, query)
	}
	return c.admit(ctx, func(work context.Context) (*models.FetchResult, error) {
		hits, err := c.ex.Search(work, query, 1)
		if err != nil {
			return nil, apperr.New(apperr.ExtractionFailed, err)
		}
		if len(hits) == 0 {
			return nil, apperr.Newf(apperr.NoResults, "nothing found for %q", query)
		}
		return c.acquire(work, hits[0].URL)
	})
}

// FetchByURL downloads the item at url.
func (c *Coordinator) FetchByURL(ctx context.Context, url string) (*models.FetchResult, error) {
	return c.admit(ctx, func(work context.Context) (*models.FetchResult, error) {
		return c.acquire(work, url)
	})
}

// Search lists candidates for query. Failures are logged and yield nothing.
func (c *Coordinator) Search(ctx context.Context, query string) []models.MediaCandidate {
	hits, err := c.ex.Search(ctx, query, c.searchLimit)
	if err != nil {
		c.log.Warnf("search %q failed: %v", query, err)
		return nil
	}
	if len(hits) > c.searchLimit {
		hits = hits[:c.searchLimit]
	}
	return hits
}

// admit waits for a gate slot. Cancelling ctx while waiting gives up without
// holding a slot; once admitted the work is no longer cancellable.
func (c *Coordinator) admit(ctx context.Context, work func(context.Context) (*models.FetchResult, error)) (*models.FetchResult, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for fetch slot: %w", err)
	}
	defer c.gate.Release(1)
	return work(context.WithoutCancel(ctx))
}

func (c *Coordinator) acquire(ctx context.Context, url string) (*models.FetchResult, error) {
	if err := c.precheck(ctx, url); err != nil {
		return nil, err
	}

	base := filepath.Join(c.tempDir, utils.NewHexID())
	cleanup := c.cleaner(base)

	dl, err := c.ex.Materialize(ctx, url, base)
	if err != nil {
		cleanup()
		c.log.Errorf("download %s failed: %v", url, err)
		return nil, apperr.New(apperr.ExtractionFailed, err)
	}

	result, err := c.finish(ctx, base, dl)
	if err != nil {
		cleanup()
		return nil, err
	}
	result.SetRelease(cleanup)
	return result, nil
}

func (c *Coordinator) precheck(ctx context.Context, url string) error {
	meta, err := c.resolver.ResolveMetadata(ctx, url)
	if err != nil {
		c.log.Warnf("precheck %s skipped: %v", url, err)
		return nil
	}
	if c.maxDuration > 0 && meta.Duration > c.maxDuration {
		return apperr.Newf(apperr.DurationExceeded, "%.0fs exceeds limit of %.0fs", meta.Duration, c.maxDuration)
	}
	if c.maxSize > 0 && meta.EstimatedSize > c.maxSize {
		return apperr.SizeExceededAt(apperr.PhasePre, meta.EstimatedSize, c.maxSize)
	}
	return nil
}

// finish normalises the audio file name, drops leftovers and runs the
// post-download checks.
func (c *Coordinator) finish(ctx context.Context, base string, dl *extractor.Download) (*models.FetchResult, error) {
	if dl.AudioPath == "" {
		return nil, apperr.Newf(apperr.ExtractionFailed, "no audio file under %s", filepath.Base(base))
	}

	audioPath := dl.AudioPath
	if !strings.EqualFold(filepath.Ext(audioPath), CanonicalExt) {
		target := base + CanonicalExt
		if err := c.canonicalise(ctx, audioPath, target); err != nil {
			return nil, apperr.New(apperr.ExtractionFailed, err)
		}
		audioPath = target
	}
	c.pruneLeftovers(base, audioPath, dl.ThumbnailPath)

	if c.maxDuration > 0 && dl.Duration > c.maxDuration {
		return nil, apperr.Newf(apperr.DurationExceeded, "%.0fs exceeds limit of %.0fs", dl.Duration, c.maxDuration)
	}
	size, err := utils.FileSize(audioPath)
	if err != nil {
		return nil, apperr.New(apperr.ExtractionFailed, err)
	}
	if c.maxSize > 0 && size > c.maxSize {
		return nil, apperr.SizeExceededAt(apperr.PhasePost, size, c.maxSize)
	}

	if c.prober != nil {
		if _, err := c.prober.Probe(ctx, audioPath); err != nil {
			if apperr.KindOf(err) == apperr.NoAudioStream {
				return nil, err
			}
			c.log.Warnf("probe %s skipped: %v", filepath.Base(audioPath), err)
		}
	}

	title := strings.TrimSpace(dl.Title)
	if title == "" {
		title = DefaultTitle
	}
	uploader := strings.TrimSpace(dl.Uploader)
	if uploader == "" {
		uploader = DefaultUploader
	}

	return &models.FetchResult{
		ExternalID:    dl.ExternalID,
		Title:         title,
		Uploader:      uploader,
		Duration:      dl.Duration,
		UploadDate:    dl.UploadDate,
		ViewCount:     dl.ViewCount,
		LikeCount:     dl.LikeCount,
		URL:           dl.URL,
		AudioPath:     audioPath,
		ThumbnailPath: dl.ThumbnailPath,
		Base:          base,
	}, nil
}

// canonicalise moves src to target, re-encoding when a transcoder is set.
// A failed transcode falls back to a plain rename.
func (c *Coordinator) canonicalise(ctx context.Context, src, target string) error {
	if c.transcoder != nil {
		err := c.transcoder.TranscodeMP3(ctx, src, target)
		if err == nil {
			return nil
		}
		c.log.Warnf("transcode %s failed, renaming instead: %v", filepath.Base(src), err)
	}
	if err := utils.MoveFile(src, target); err != nil {
		return fmt.Errorf("renaming audio: %w", err)
	}
	return nil
}

func (c *Coordinator) pruneLeftovers(base string, keep ...string) {
	files, err := utils.FilesWithBase(base)
	if err != nil {
		c.log.Warnf("listing %s: %v", filepath.Base(base), err)
		return
	}
	var stale []string
	for _, f := range files {
		if !slices.Contains(keep, f) {
			stale = append(stale, f)
		}
	}
	if err := utils.RemoveFiles(stale); err != nil {
		c.log.Warnf("pruning %s: %v", filepath.Base(base), err)
	}
}

// cleaner returns a function removing every file under base, at most once.
func (c *Coordinator) cleaner(base string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			files, err := utils.FilesWithBase(base)
			if err == nil {
				err = utils.RemoveFiles(files)
			}
			if err != nil {
				c.log.Warnf("cleanup %s: %v", filepath.Base(base), err)
			}
		})
	}
}
