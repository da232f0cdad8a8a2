// Package transcription turns audio into transcripts, falling back to a
// synthetic transcript whenever the real provider is disabled or fails.
package transcription

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"studyflow/internal/apperr"
	"studyflow/internal/textutil"
)

const (
	ModeProvider = "provider"
	ModeMock     = "mock"
	ModeFallback = "fallback"

	ProviderMock = "mock"

	defaultFileName = "audio.wav"
)

type Chapter struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
}

type Result struct {
	Text            string    `json:"text"`
	Confidence      float64   `json:"confidence"`
	LanguageCode    string    `json:"language_code"`
	DurationSeconds float64   `json:"duration_seconds"`
	WordCount       int       `json:"word_count"`
	IsMock          bool      `json:"is_mock"`
	Provider        string    `json:"provider"`
	FallbackReason  string    `json:"fallback_reason,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	Chapters        []Chapter `json:"chapters,omitempty"`
}

// Provider is a real speech-to-text backend.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, fileName string) (Result, error)
}

// Source describes what is being transcribed. Audio may be empty for
// metadata-only synthesis, in which case Title and DurationSeconds drive the
// synthetic transcript.
type Source struct {
	Audio           []byte
	FileName        string
	Title           string
	DurationSeconds float64
}

type ObserverFunc func(mode string)

type Option func(*Service)

type Service struct {
	provider        Provider
	logger          *slog.Logger
	useMock         bool
	timeout         time.Duration
	defaultDuration time.Duration
	synth           *Synthesizer
	observer        ObserverFunc
}

func WithMock(enabled bool) Option {
	return func(s *Service) {
		s.useMock = enabled
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDefaultDuration sets the duration assumed when synthesizing from
// metadata that carries no duration.
func WithDefaultDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

func WithSynthesizer(synth *Synthesizer) Option {
	return func(s *Service) {
		if synth != nil {
			s.synth = synth
		}
	}
}

func WithObserver(observer ObserverFunc) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

func New(provider Provider, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		provider:        provider,
		logger:          logger,
		timeout:         30 * time.Minute,
		defaultDuration: 5 * time.Minute,
		synth:           NewSynthesizer(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) MockMode() bool {
	return s.useMock || s.provider == nil
}

// Transcribe runs the real provider over src.Audio. Mock mode, a missing
// provider, or any provider failure yields a synthetic transcript instead.
// Only caller-side cancellation or deadline is returned as an error.
func (s *Service) Transcribe(ctx context.Context, src Source) (Result, error) {
	if len(src.Audio) == 0 {
		return Result{}, apperr.New(apperr.InvalidInput, "audio is empty")
	}
	fileName := strings.TrimSpace(src.FileName)
	if fileName == "" {
		fileName = defaultFileName
	}
	if src.Title == "" {
		src.Title = baseName(fileName)
	}
	duration := EstimateDuration(src.Audio, src.DurationSeconds)

	if s.useMock {
		s.observe(ModeMock)
		return s.synthesize(src.Title, duration, "mock transcription enabled"), nil
	}
	if s.provider == nil {
		s.observe(ModeMock)
		return s.synthesize(src.Title, duration, "no transcription provider configured"), nil
	}

	started := time.Now()
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.provider.Transcribe(pctx, src.Audio, fileName)
	cancel()

	if err == nil {
		res.Text = textutil.Clean(res.Text)
		if res.Text == "" {
			err = errors.New("provider returned an empty transcript")
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, apperr.FromContext(ctxErr)
		}
		s.logger.Warn("transcription provider failed, using synthetic transcript",
			"provider", s.provider.Name(),
			"file", fileName,
			"error", err,
		)
		s.observe(ModeFallback)
		return s.synthesize(src.Title, duration, s.provider.Name()+": "+err.Error()), nil
	}

	res.Provider = s.provider.Name()
	if res.DurationSeconds <= 0 {
		res.DurationSeconds = duration
	}
	if res.WordCount == 0 {
		res.WordCount = textutil.WordCount(res.Text)
	}
	if res.LanguageCode == "" {
		res.LanguageCode = "en"
	}
	s.observe(ModeProvider)
	s.logger.Info("transcription finished",
		"provider", res.Provider,
		"file", fileName,
		"words", res.WordCount,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return res, nil
}

// Synthesize builds a transcript from metadata alone, used when the audio
// could not be acquired.
func (s *Service) Synthesize(title string, durationSeconds float64, reason string) Result {
	if durationSeconds <= 0 {
		durationSeconds = s.defaultDuration.Seconds()
	}
	s.observe(ModeFallback)
	return s.synthesize(title, durationSeconds, reason)
}

func (s *Service) synthesize(title string, durationSeconds float64, reason string) Result {
	res := s.synth.Generate(title, durationSeconds)
	res.FallbackReason = reason
	s.logger.Info("synthetic transcript generated",
		"title", title,
		"duration_seconds", durationSeconds,
		"words", res.WordCount,
		"reason", reason,
	)
	return res
}

func (s *Service) observe(mode string) {
	if s.observer != nil {
		s.observer(mode)
	}
}

func baseName(fileName string) string {
	name := fileName
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}
