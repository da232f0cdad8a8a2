// Package pipeline composes extraction, OCR, media acquisition,
// transcription and generation into the caller-facing flows.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"studyflow/internal/apperr"
	"studyflow/internal/extract"
	"studyflow/internal/generation"
	"studyflow/internal/media"
	"studyflow/internal/ocr"
	"studyflow/internal/transcription"
)

const (
	FlowDocument   = "document"
	FlowImage      = "image"
	FlowVideo      = "video"
	FlowAudio      = "audio"
	FlowQuiz       = "quiz"
	FlowFlashcards = "flashcards"
	FlowAssist     = "assist"
	FlowIntent     = "intent"
	FlowTranscript = "video_transcript"
)

type Extractor interface {
	Extract(ctx context.Context, data []byte, fileName string) (extract.Result, error)
}

type ImageReader interface {
	Extract(ctx context.Context, data []byte, fileName string) (ocr.Result, error)
	Health(ctx context.Context) ocr.Health
}

type MediaSource interface {
	Acquire(ctx context.Context, rawURL string) (*media.Audio, error)
	Metadata(ctx context.Context, rawURL string) media.Info
}

type Transcriber interface {
	Transcribe(ctx context.Context, src transcription.Source) (transcription.Result, error)
	Synthesize(title string, durationSeconds float64, reason string) transcription.Result
}

type Generator interface {
	Generate(ctx context.Context, req generation.Request) generation.Outcome
	Health(ctx context.Context) generation.HealthReport
}

type FlowObserverFunc func(flow, status string, duration time.Duration)

type Option func(*Service)

func WithFlowTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flowTimeout = d
		}
	}
}

func WithFlowObserver(observer FlowObserverFunc) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

type Service struct {
	extractor   Extractor
	images      ImageReader
	media       MediaSource
	transcriber Transcriber
	generator   Generator
	logger      *slog.Logger
	flowTimeout time.Duration
	observer    FlowObserverFunc
}

type Dependencies struct {
	Extractor   Extractor
	Images      ImageReader
	Media       MediaSource
	Transcriber Transcriber
	Generator   Generator
}

func New(deps Dependencies, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		extractor:   deps.Extractor,
		images:      deps.Images,
		media:       deps.Media,
		transcriber: deps.Transcriber,
		generator:   deps.Generator,
		logger:      logger,
		flowTimeout: 30 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Health(ctx context.Context) generation.HealthReport {
	return s.generator.Health(ctx)
}

func (s *Service) OCRHealth(ctx context.Context) ocr.Health {
	return s.images.Health(ctx)
}

// runFlow bounds fn by the flow timeout and records how it ended.
func runFlow[T any](ctx context.Context, s *Service, flow, userID string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.flowTimeout)
	defer cancel()

	started := time.Now()
	out, err := fn(ctx)
	elapsed := time.Since(started)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !apperr.Is(err, apperr.Timeout) && !apperr.Is(err, apperr.Canceled) {
			err = apperr.AtStage(apperr.FromContext(ctxErr), apperr.StageOf(err))
		}
		ae := apperr.Classify(err)
		s.logger.Warn("flow failed",
			"flow", flow,
			"user_id", userID,
			"stage", ae.Stage,
			"kind", ae.Kind,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		s.observe(flow, "failed", elapsed)
		var zero T
		return zero, err
	}

	s.logger.Info("flow finished",
		"flow", flow,
		"user_id", userID,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.observe(flow, "ok", elapsed)
	return out, nil
}

func (s *Service) observe(flow, status string, d time.Duration) {
	if s.observer != nil {
		s.observer(flow, status, d)
	}
}
