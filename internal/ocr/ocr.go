// Package ocr extracts text from uploaded images.
package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/m-mizutani/goerr/v2"

	"studyflow/internal/apperr"
	"studyflow/internal/sysexec"
	"studyflow/internal/textutil"
)

const EmptyMessage = "No text found in the image"

const (
	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// a blank 1x1 PNG; recognizing it exercises the engine end to end
const healthImage = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8/5+hHgAHggJ/PchI7wAAAABJRU5ErkJggg=="

const healthTimeout = 30 * time.Second

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

type Recognition struct {
	Text       string
	Confidence float64
}

type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, mimeType string) (Recognition, error)
}

type Result struct {
	Text        string
	SourceLabel string
	FileName    string
	MimeType    string
	Engine      string
	CharCount   int
	WordCount   int
	Confidence  float64
	// Empty marks a successful run that found no text.
	Empty   bool
	Message string
}

type ObserverFunc func(engine, result string)

type Option func(*Service)

type Service struct {
	engine   Engine
	logger   *slog.Logger
	timeout  time.Duration
	observer ObserverFunc
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithObserver(observer ObserverFunc) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

func New(engine Engine, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		engine:  engine,
		logger:  logger,
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func IsImageFile(fileName string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(fileName))]
}

func (s *Service) Extract(ctx context.Context, data []byte, fileName string) (Result, error) {
	if !IsImageFile(fileName) {
		return Result{}, apperr.New(apperr.UnsupportedType, fmt.Sprintf("%q is not a supported image type", fileName))
	}
	if len(data) == 0 {
		return Result{}, apperr.New(apperr.InvalidInput, "image file is empty")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Result{}, apperr.New(apperr.UnsupportedType, fmt.Sprintf("%q does not contain image data (detected %s)", fileName, mt.String()))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	rec, err := s.engine.Recognize(ctx, data, mt.String())
	if err != nil {
		s.observe("failed")
		if ctxErr := apperr.FromContext(err); ctxErr != nil {
			return Result{}, ctxErr
		}
		var classified *apperr.Error
		if errors.As(err, &classified) {
			return Result{}, err
		}
		if errors.Is(err, sysexec.ErrBinaryNotFound) {
			return Result{}, apperr.Wrap(err, apperr.ProviderUnavailable, "OCR engine is not installed")
		}
		wrapped := goerr.Wrap(err, "recognize image", goerr.V("file", fileName), goerr.V("engine", s.engine.Name()))
		return Result{}, apperr.Wrap(wrapped, apperr.ProviderUnavailable, "OCR engine failed")
	}

	text := textutil.Clean(rec.Text)
	res := Result{
		Text:        text,
		SourceLabel: "image:" + fileName,
		FileName:    fileName,
		MimeType:    mt.String(),
		Engine:      s.engine.Name(),
		CharCount:   len([]rune(text)),
		WordCount:   textutil.WordCount(text),
		Confidence:  rec.Confidence,
	}
	if text == "" {
		res.Empty = true
		res.Message = EmptyMessage
		s.observe("empty")
	} else {
		res.Message = fmt.Sprintf("Extracted %d characters", res.CharCount)
		s.observe("ok")
	}

	s.logger.Info("ocr finished",
		"file", fileName,
		"engine", res.Engine,
		"chars", res.CharCount,
		"confidence", res.Confidence,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return res, nil
}

type Health struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Message string `json:"message"`
}

// Health runs the engine over a tiny built-in image.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Engine: s.engine.Name()}
	img, err := base64.StdEncoding.DecodeString(healthImage)
	if err != nil {
		h.Status, h.Message = Unhealthy, err.Error()
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, min(s.timeout, healthTimeout))
	defer cancel()
	if _, err := s.engine.Recognize(ctx, img, "image/png"); err != nil {
		s.logger.Warn("ocr health check failed", "engine", h.Engine, "error", err)
		h.Status = Unhealthy
		if errors.Is(err, sysexec.ErrBinaryNotFound) {
			h.Message = "OCR engine is not installed"
		} else {
			h.Message = "OCR engine failed: " + err.Error()
		}
		return h
	}
	h.Status, h.Message = Healthy, "OCR engine is working"
	return h
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer(s.engine.Name(), result)
	}
}
