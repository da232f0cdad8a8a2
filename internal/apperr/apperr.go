// Package apperr defines the failure kinds surfaced at flow boundaries.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	UnsupportedType     Kind = "unsupported_type"
	NoTextFound         Kind = "no_text_found"
	ExtractionFailed    Kind = "extraction_failed"
	TooLong             Kind = "too_long"
	InvalidURL          Kind = "invalid_url"
	InvalidInput        Kind = "invalid_input"
	BotDetected         Kind = "bot_detected"
	NetworkError        Kind = "network_error"
	ProviderUnavailable Kind = "provider_unavailable"
	QuotaExceeded       Kind = "quota_exceeded"
	RateLimited         Kind = "rate_limited"
	ValidationFailed    Kind = "validation_failed"
	Timeout             Kind = "timeout"
	Canceled            Kind = "canceled"
	Internal            Kind = "internal"
)

type Stage string

const (
	StageValidate   Stage = "validate"
	StageExtract    Stage = "extract"
	StageOCR        Stage = "ocr"
	StageAcquire    Stage = "acquire"
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate"
	StageParse      Stage = "parse"
)

type Error struct {
	Kind       Kind
	Stage      Stage
	Message    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// AtStage stamps err with the stage that failed. An existing stage is kept so
// the innermost attribution wins; non-apperr errors are classified first.
func AtStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Stage == "" {
			ae.Stage = stage
		}
		return err
	}
	classified := Classify(err)
	classified.Stage = stage
	return classified
}

// Classify returns err as an *Error, mapping context errors and defaulting to Internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if fromCtx := FromContext(err); fromCtx != nil {
		return fromCtx
	}
	return Wrap(err, Internal, err.Error())
}

func FromContext(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, Timeout, "operation exceeded its time budget")
	case errors.Is(err, context.Canceled):
		return Wrap(err, Canceled, "operation canceled")
	default:
		return nil
	}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

func StageOf(err error) Stage {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
