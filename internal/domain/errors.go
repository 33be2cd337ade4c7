package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups failures for the run summary
type ErrorKind string

const (
	KindFetch       ErrorKind = "fetch"
	KindParse       ErrorKind = "parse"
	KindTranslation ErrorKind = "translation"
	KindValidation  ErrorKind = "validation"
	KindSink        ErrorKind = "sink"
	KindOther       ErrorKind = "other"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrSubPageUnavailable = errors.New("sub-page unavailable")
	ErrQuotaExceeded      = errors.New("translation quota exceeded")
	ErrTextTooLong        = errors.New("text exceeds per-call limit")
	ErrNoData             = errors.New("page yielded no vehicle data")
)

// FetchError is a network, timeout or non-2xx failure at the fetch boundary
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means markup was present but no pattern of a field's chain matched
type ParseError struct {
	Field   string
	Pattern string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("parse %s (%s): %v", e.Field, e.Pattern, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TranslationError is returned by the translation collaborator
type TranslationError struct {
	Text string
	Err  error
}

func (e *TranslationError) Error() string {
	text := e.Text
	if runes := []rune(text); len(runes) > 40 {
		text = string(runes[:40]) + "..."
	}
	return fmt.Sprintf("translate %q: %v", text, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// ValidationError marks a record missing a required identity component
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("validation: %s=%q: %v", e.Field, e.Value, e.Wrapped)
	}
	return fmt.Sprintf("validation: %s=%q", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// SinkError wraps a failed write into one of the sinks
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// KindOf classifies err for the run summary
func KindOf(err error) ErrorKind {
	var (
		fetchErr      *FetchError
		parseErr      *ParseError
		translateErr  *TranslationError
		validationErr *ValidationError
		sinkErr       *SinkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &parseErr), errors.Is(err, ErrNoData):
		return KindParse
	case errors.As(err, &translateErr):
		return KindTranslation
	case errors.As(err, &sinkErr):
		return KindSink
	default:
		return KindOther
	}
}
