package models

import "time"

// MediaCandidate is one search hit from the extraction tool. Never persisted.
type MediaCandidate struct {
	ExternalID string  // provider video ID
	Title      string  // video title
	Duration   float64 // seconds, 0 when unknown
	URL        string  // watch URL
}

// FetchResult is the outcome of one successful fetch attempt.
// Every file under Base belongs to the attempt and is removed by Release.
type FetchResult struct {
	ExternalID    string
	Title         string
	Uploader      string
	Duration      float64 // seconds
	UploadDate    string  // YYYYMMDD as reported by the provider
	ViewCount     *int64
	LikeCount     *int64
	URL           string
	AudioPath     string
	ThumbnailPath string // empty when the provider had no thumbnail
	Base          string // shared filename stem of all working files

	release func()
}

// SetRelease installs the cleanup hook. Used by the fetch coordinator only.
func (r *FetchResult) SetRelease(fn func()) {
	r.release = fn
}

// Release removes the attempt's working files. Safe to call more than once.
func (r *FetchResult) Release() {
	if r == nil || r.release == nil {
		return
	}
	r.release()
}

// SessionMeta is everything the interaction cache keeps about one sent song.
type SessionMeta struct {
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	AudioPath     string  `json:"file,omitempty"`
	ThumbnailPath string  `json:"thumb,omitempty"`
	Base          string  `json:"base,omitempty"`
	Query         string  `json:"query,omitempty"`
	URL           string  `json:"url"`
	RequesterID   int64   `json:"requester"`
	ChatID        int64   `json:"chat_id,omitempty"`
	Duration      float64 `json:"duration"`
	UploadDate    string  `json:"upload_date,omitempty"`
	ViewCount     *int64  `json:"view_count,omitempty"`
	LikeCount     *int64  `json:"like_count,omitempty"`
	DislikeCount  *int64  `json:"dislike_count,omitempty"`
}

// SessionEntry is a live interaction-cache row.
type SessionEntry struct {
	Key        string
	MessageRef *int64 // nil until the message has been sent
	Meta       SessionMeta
	CreatedAt  time.Time
}

// MetaFromFetch copies the fields of a fetch result the cache keeps.
func MetaFromFetch(r *FetchResult) SessionMeta {
	return SessionMeta{
		Title:         r.Title,
		Artist:        r.Uploader,
		AudioPath:     r.AudioPath,
		ThumbnailPath: r.ThumbnailPath,
		Base:          r.Base,
		URL:           r.URL,
		Duration:      r.Duration,
		UploadDate:    r.UploadDate,
		ViewCount:     r.ViewCount,
		LikeCount:     r.LikeCount,
	}
}
