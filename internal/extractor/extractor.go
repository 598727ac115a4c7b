// Package extractor wraps the external media-extraction tool behind a narrow
// contract. Nothing outside this package sees the tool's raw output.
package extractor

import (
	"context"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/himanishpuri/tunebot/pkg/utils"
)

var (
	AudioExtensions     = []string{".mp3", ".m4a", ".webm", ".opus", ".ogg"}
	ThumbnailExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
)

// Metadata is what a precheck can learn without downloading bytes.
// Zero values mean the field was not reported.
type Metadata struct {
	ExternalID    string
	Title         string
	Uploader      string
	Duration      float64 // seconds
	EstimatedSize int64   // bytes
}

// Download describes a materialized item.
type Download struct {
	ExternalID    string
	Title         string
	Uploader      string
	Duration      float64
	UploadDate    string
	ViewCount     *int64
	LikeCount     *int64
	URL           string
	AudioPath     string
	ThumbnailPath string
}

// Resolver answers prechecks.
type Resolver interface {
	ResolveMetadata(ctx context.Context, url string) (*Metadata, error)
}

// Extractor is the full capability the fetch coordinator consumes.
type Extractor interface {
	Resolver
	// Search returns at most limit candidates; fewer is not an error.
	Search(ctx context.Context, query string, limit int) ([]models.MediaCandidate, error)
	// Materialize downloads audio (and a thumbnail when available) to files
	// named outputBase.<ext>.
	Materialize(ctx context.Context, url, outputBase string) (*Download, error)
}

// LocateFiles finds the audio and thumbnail written under base.
func LocateFiles(base string) (audio, thumbnail string) {
	return utils.FindWithExtensions(base, AudioExtensions), utils.FindWithExtensions(base, ThumbnailExtensions)
}

// Unavailable stands in when no extraction tool could be set up. Every call
// fails with ExtractionFailed.
type Unavailable struct {
	Err error
}

func (u Unavailable) ResolveMetadata(ctx context.Context, url string) (*Metadata, error) {
	return nil, apperr.New(apperr.ExtractionFailed, u.Err)
}

func (u Unavailable) Search(ctx context.Context, query string, limit int) ([]models.MediaCandidate, error) {
	return nil, apperr.New(apperr.ExtractionFailed, u.Err)
}

func (u Unavailable) Materialize(ctx context.Context, url, outputBase string) (*Download, error) {
	return nil, apperr.New(apperr.ExtractionFailed, u.Err)
}
