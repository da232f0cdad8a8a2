package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studyflow/internal/apperr"
	"studyflow/internal/config"
	"studyflow/internal/generation"
	"studyflow/internal/model"
	"studyflow/internal/ocr"
	"studyflow/internal/pipeline"
)

type PipelineService interface {
	Document(ctx context.Context, in pipeline.DocumentInput) (pipeline.Note, error)
	Image(ctx context.Context, in pipeline.ImageInput) (ocr.Result, error)
	Video(ctx context.Context, in pipeline.VideoInput) (pipeline.Note, error)
	Audio(ctx context.Context, in pipeline.AudioInput) (pipeline.Note, error)
	Quiz(ctx context.Context, in pipeline.QuizInput) (pipeline.QuizResult, error)
	Flashcards(ctx context.Context, in pipeline.FlashcardsInput) (pipeline.FlashcardsResult, error)
	Assist(ctx context.Context, in pipeline.AssistInput) (pipeline.AssistResult, error)
	Intent(ctx context.Context, in pipeline.IntentInput) (pipeline.IntentResult, error)
	VideoTranscript(ctx context.Context, in pipeline.VideoInput) (pipeline.VideoTranscript, error)
	Health(ctx context.Context) generation.HealthReport
	OCRHealth(ctx context.Context) ocr.Health
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

type Dependencies struct {
	Pipeline       PipelineService
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	pipeline     PipelineService
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	userIDHeader     = "X-User-Id"
	requestIDContext = ctxKey("request_id")
	maxJSONBodyBytes = 1 << 20
	readyTimeout     = 30 * time.Second
	serviceName      = "studyflow"
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Pipeline == nil {
		panic("httpapi: pipeline dependency is required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		pipeline:     deps.Pipeline,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.authMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.handleDocument)
		r.Post("/images", s.handleImage)
		r.Post("/videos", s.handleVideo)
		r.Post("/videos/transcripts", s.handleVideoTranscript)
		r.Post("/audio", s.handleAudio)
		r.Post("/quizzes", s.handleQuiz)
		r.Post("/flashcards", s.handleFlashcards)
		r.Post("/assist", s.handleAssist)
		r.Post("/intents", s.handleIntent)
	})

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	report := s.pipeline.Health(ctx)
	ocrHealth := s.pipeline.OCRHealth(ctx)
	// OCR only backs the image route, so it is reported without gating readiness.
	status := http.StatusOK
	if report.Status == generation.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, model.ReadyResponse{
		OK:          status == http.StatusOK,
		ServiceName: serviceName,
		Generation:  report,
		OCR:         ocrHealth,
	})
}

// statusForKind maps failure kinds to HTTP status codes.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.UnsupportedType:
		return http.StatusUnsupportedMediaType
	case apperr.NoTextFound, apperr.ValidationFailed, apperr.ExtractionFailed:
		return http.StatusUnprocessableEntity
	case apperr.InvalidURL, apperr.InvalidInput, apperr.TooLong:
		return http.StatusBadRequest
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.ProviderUnavailable, apperr.BotDetected, apperr.NetworkError:
		return http.StatusServiceUnavailable
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	case apperr.Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.Classify(err)
	status := statusForKind(ae.Kind)

	message := ae.Message
	if status == http.StatusInternalServerError {
		message = "request failed"
		s.logger.Error("request failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}

	details := map[string]any{}
	if ae.Stage != "" {
		details["stage"] = string(ae.Stage)
	}
	if ae.Suggestion != "" {
		details["suggestion"] = ae.Suggestion
	}
	if len(details) == 0 {
		details = nil
	}
	s.writeError(w, r, status, string(ae.Kind), message, details)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:     model.APIError{Code: code, Message: message, Details: details},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = newRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"user_id", userID(r),
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware enforces API_AUTH_TOKEN when configured. Probes and
// metrics stay public.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIAuthToken == "" || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		token, hasHeader, ok := extractBearerToken(r.Header.Get("Authorization"))
		if hasHeader && !ok {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authorization must be Bearer <token>", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIAuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	default:
		return false
	}
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func extractBearerToken(header string) (token string, hasHeader bool, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, true
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", true, false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", true, false
	}
	return token, true, true
}

func newRequestID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func isMaxBytes(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
