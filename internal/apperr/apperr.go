// Package apperr defines the closed set of failure kinds surfaced by the
// fetch pipeline, the catalog and the interaction cache.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	DurationExceeded
	SizeExceeded
	ExtractionFailed
	NoResults
	NoAudioStream
	CacheExpiredOrMissing
	StorageError
)

func (k Kind) String() string {
	switch k {
	case DurationExceeded:
		return "duration_exceeded"
	case SizeExceeded:
		return "size_exceeded"
	case ExtractionFailed:
		return "extraction_failed"
	case NoResults:
		return "no_results"
	case NoAudioStream:
		return "no_audio_stream"
	case CacheExpiredOrMissing:
		return "cache_expired_or_missing"
	case StorageError:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Phase tells whether a size check fired before or after the download.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePre
	PhasePost
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhasePost:
		return "post"
	default:
		return ""
	}
}

// Error is a tagged failure. Err carries the underlying cause, if any.
type Error struct {
	Kind  Kind
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Phase != PhaseNone {
		msg += "(" + e.Phase.String() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, apperr.New(apperr.NoResults, nil)) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Phase == PhaseNone || t.Phase == e.Phase)
}

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func SizeExceededAt(phase Phase, size, limit int64) *Error {
	return &Error{
		Kind:  SizeExceeded,
		Phase: phase,
		Err:   fmt.Errorf("%d bytes exceeds limit of %d bytes", size, limit),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PhaseOf returns the size-check phase carried by err, if any.
func PhaseOf(err error) Phase {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return PhaseNone
}

// IsValidation reports whether err is an expected outcome rather than a fault.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case DurationExceeded, SizeExceeded, NoResults, NoAudioStream:
		return true
	default:
		return false
	}
}
