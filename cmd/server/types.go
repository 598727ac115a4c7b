package main

import (
	"fmt"
	"strings"

	"github.com/himanishpuri/tunebot/pkg/models"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
}

type SearchResponse struct {
	Query   string             `json:"query"`
	Matches []models.SongMatch `json:"matches"`
	Count   int                `json:"count"`
}

type CandidateDTO struct {
	ExternalID string  `json:"external_id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration,omitempty"`
	URL        string  `json:"url"`
}

type CandidatesResponse struct {
	Query      string         `json:"query"`
	Candidates []CandidateDTO `json:"candidates"`
	Count      int            `json:"count"`
}

// FetchRequest is the body for POST /api/fetch. Exactly one of Query and
// URL is set.
type FetchRequest struct {
	Query       string `json:"query"`
	URL         string `json:"url"`
	RequesterID int64  `json:"requester_id"`
}

func (r *FetchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	r.URL = strings.TrimSpace(r.URL)
	switch {
	case r.Query == "" && r.URL == "":
		return fmt.Errorf("query or url is required")
	case r.Query != "" && r.URL != "":
		return fmt.Errorf("query and url are mutually exclusive")
	}
	return nil
}

func (r *FetchRequest) target() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Query
}

type SessionResponse struct {
	Key        string             `json:"key"`
	MessageRef *int64             `json:"message_ref,omitempty"`
	Meta       models.SessionMeta `json:"meta"`
	CreatedAt  string             `json:"created_at,omitempty"`
}

type SweepResponse struct {
	Removed int64 `json:"removed"`
}

// IndexSongRequest is the body for POST /api/corpora/{corpus}/songs.
type IndexSongRequest struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Title        string `json:"title"`
	Performer    string `json:"performer"`
}

func (r *IndexSongRequest) Validate() error {
	if r.FileID == "" || r.FileUniqueID == "" {
		return fmt.Errorf("file_id and file_unique_id are required")
	}
	return nil
}

type IndexSongResponse struct {
	Corpus  models.Corpus `json:"corpus"`
	Outcome string        `json:"outcome"`
}

type SetCachedRequest struct {
	Cached *bool `json:"cached"`
}

type HealthResponse struct {
	Status string                  `json:"status"`
	Time   string                  `json:"time"`
	Songs  map[models.Corpus]int64 `json:"songs,omitempty"`
}
