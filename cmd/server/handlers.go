package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/himanishpuri/tunebot/internal/app"
	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/internal/catalog"
	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
)

const maxBodyBytes = 1 << 20

// Backend is the part of app.Service the HTTP surface uses.
type Backend interface {
	Search(ctx context.Context, query string) ([]models.SongMatch, error)
	Candidates(ctx context.Context, query string) []models.MediaCandidate
	Fetch(ctx context.Context, query string, requesterID int64, outDir string) (*app.Fetched, error)
	Session(ctx context.Context, key string) (*models.SessionEntry, error)
	DeleteSession(ctx context.Context, key string) error
	Sweep(ctx context.Context) (int64, error)
	Index(ctx context.Context, corpus models.Corpus, fileID, fileUniqueID, title, performer string) models.IndexOutcome
	Remove(ctx context.Context, corpus models.Corpus, id int64) error
	SetCached(ctx context.Context, corpus models.Corpus, id int64, cached bool) error
	Counts(ctx context.Context) (map[models.Corpus]int64, error)
	Ping() error
}

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	backend Backend
	config  *ServerConfig
	log     logger.Interface
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DataPath       string
	AllowedOrigins []string
	FetchTimeout   time.Duration
}

func NewServer(backend Backend, config *ServerConfig, log logger.Interface) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Server{backend: backend, config: config, log: log}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondFailure maps a domain error to a status code.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound), kind == apperr.CacheExpiredOrMissing:
		status = http.StatusNotFound
	case apperr.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case kind == apperr.ExtractionFailed:
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.Errorf("request failed: %v", err)
	}

	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
	}
	if kind != apperr.KindUnknown {
		resp.Kind = kind.String()
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Time: time.Now().Format(time.RFC3339)}
	if err := s.backend.Ping(); err != nil {
		s.log.Errorf("Database unreachable: %v", err)
		resp.Status = "unhealthy"
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	counts, err := s.backend.Counts(r.Context())
	if err != nil {
		s.log.Errorf("Failed to count songs: %v", err)
		resp.Status = "degraded"
	} else {
		resp.Songs = counts
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("q"))
}

// handleSearch handles GET /api/search?q=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := queryParam(r)
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	matches, err := s.backend.Search(r.Context(), q)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	if matches == nil {
		matches = []models.SongMatch{}
	}
	s.respondJSON(w, http.StatusOK, SearchResponse{Query: q, Matches: matches, Count: len(matches)})
}

// handleCandidates handles GET /api/candidates?q=
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	q := queryParam(r)
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	hits := s.backend.Candidates(r.Context(), q)
	dtos := make([]CandidateDTO, len(hits))
	for i, c := range hits {
		dtos[i] = CandidateDTO{ExternalID: c.ExternalID, Title: c.Title, Duration: c.Duration, URL: c.URL}
	}
	s.respondJSON(w, http.StatusOK, CandidatesResponse{Query: q, Candidates: dtos, Count: len(dtos)})
}

// handleFetch handles POST /api/fetch
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	s.log.Infof("Fetching %q for %d", req.target(), req.RequesterID)
	fetched, err := s.backend.Fetch(ctx, req.target(), req.RequesterID, "")
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, SessionResponse{Key: fetched.Key, Meta: fetched.Meta})
}

// handleGetSession handles GET /api/sessions/{key}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	entry, err := s.backend.Session(r.Context(), key)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, SessionResponse{
		Key:        entry.Key,
		MessageRef: entry.MessageRef,
		Meta:       entry.Meta,
		CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
	})
}

// handleDeleteSession handles DELETE /api/sessions/{key}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteSession(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSweep handles POST /api/sessions/sweep
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.backend.Sweep(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, SweepResponse{Removed: n})
}

func (s *Server) corpusParam(w http.ResponseWriter, r *http.Request) (models.Corpus, bool) {
	corpus, err := models.ParseCorpus(chi.URLParam(r, "corpus"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return corpus, true
}

func (s *Server) songIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "Invalid song ID")
		return 0, false
	}
	return id, true
}

// handleIndexSong handles POST /api/corpora/{corpus}/songs
func (s *Server) handleIndexSong(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.corpusParam(w, r)
	if !ok {
		return
	}
	var req IndexSongRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := s.backend.Index(r.Context(), corpus, req.FileID, req.FileUniqueID, req.Title, req.Performer)
	status := http.StatusOK
	switch outcome {
	case models.Indexed:
		status = http.StatusCreated
	case models.IndexError:
		status = http.StatusInternalServerError
	}
	s.respondJSON(w, status, IndexSongResponse{Corpus: corpus, Outcome: outcome.String()})
}

// handleRemoveSong handles DELETE /api/corpora/{corpus}/songs/{id}
func (s *Server) handleRemoveSong(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.corpusParam(w, r)
	if !ok {
		return
	}
	id, ok := s.songIDParam(w, r)
	if !ok {
		return
	}
	if err := s.backend.Remove(r.Context(), corpus, id); err != nil {
		s.respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCached handles PATCH /api/corpora/{corpus}/songs/{id}/cached
func (s *Server) handleSetCached(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.corpusParam(w, r)
	if !ok {
		return
	}
	id, ok := s.songIDParam(w, r)
	if !ok {
		return
	}
	var req SetCachedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Cached == nil {
		s.respondError(w, http.StatusBadRequest, "cached is required")
		return
	}
	if err := s.backend.SetCached(r.Context(), corpus, id, *req.Cached); err != nil {
		s.respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
