// Package generation wraps a text generation provider with the shared circuit
// breaker, request spacing, retry with exponential backoff, and canned
// responses for exhausted quota.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"studyflow/internal/apperr"
	"studyflow/internal/resilience"
	"studyflow/internal/upstream/gemini"
)

const unavailableMessage = "AI service is temporarily unavailable. Please try again shortly."

type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ObserverFunc func(task TaskKind, status Status)

type Option func(*Client)

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithRetryBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryBase = d
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

type Client struct {
	provider   Provider
	breaker    *resilience.Breaker
	limiter    resilience.Limiter
	logger     *slog.Logger
	maxRetries int
	retryBase  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	observer   ObserverFunc
	requests   atomic.Int64
}

func New(provider Provider, breaker *resilience.Breaker, limiter resilience.Limiter, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = resilience.Unlimited{}
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(3, 3, 30*time.Second)
	}
	c := &Client{
		provider:   provider,
		breaker:    breaker,
		limiter:    limiter,
		logger:     logger,
		maxRetries: 3,
		retryBase:  time.Second,
		sleep:      resilience.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RequestCount is the number of provider calls made so far.
func (c *Client) RequestCount() int64 {
	return c.requests.Load()
}

func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) Generate(ctx context.Context, req Request) Outcome {
	out := c.generate(ctx, req)
	if c.observer != nil {
		c.observer(req.Task, out.Status)
	}
	return out
}

// Text returns usable text, reporting whether it is a canned quota response.
func (c *Client) Text(ctx context.Context, req Request) (string, bool, error) {
	out := c.Generate(ctx, req)
	if !out.Usable() {
		return "", false, out.Err()
	}
	return out.Text, out.Status == StatusQuotaFallback, nil
}

func (c *Client) generate(ctx context.Context, req Request) Outcome {
	if strings.TrimSpace(req.Prompt) == "" {
		return failure(apperr.InvalidInput, CauseEmptyPrompt, "prompt is empty", 0)
	}

	log := c.logger.With("task", string(req.Task))
	for attempt := 0; ; attempt++ {
		ticket, err := c.breaker.Allow()
		if err != nil {
			log.Warn("generation short-circuited", "breaker", c.breaker.State().String())
			return failure(apperr.ProviderUnavailable, CauseCircuitOpen, unavailableMessage, attempt)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			c.breaker.Record(ticket, resilience.Ignored)
			return contextFailure(ctx, err, attempt)
		}

		c.requests.Add(1)
		started := time.Now()
		text, err := c.provider.Generate(ctx, req.Prompt)
		v := classify(err)
		attempts := attempt + 1

		switch v.class {
		case classSuccess:
			c.breaker.Record(ticket, resilience.Success)
			log.Debug("generation succeeded", "attempts", attempts, "chars", len(text), "duration_ms", time.Since(started).Milliseconds())
			return Outcome{Status: StatusSuccess, Text: strings.TrimSpace(text), Attempts: attempts}

		case classQuota:
			c.breaker.Record(ticket, resilience.Ignored)
			category := CategoryFor(req.Task, req.Prompt)
			log.Warn("generation quota exhausted, using fallback response", "category", string(category))
			return Outcome{
				Status:   StatusQuotaFallback,
				Text:     FallbackText(category),
				Kind:     apperr.QuotaExceeded,
				Cause:    CauseQuota,
				Message:  v.message,
				Attempts: attempts,
				Category: category,
			}

		case classRetryable:
			if attempt < c.maxRetries {
				c.breaker.Record(ticket, resilience.Ignored)
				delay := c.retryBase * time.Duration(1<<attempt)
				log.Info("generation attempt failed, retrying", "attempt", attempts, "cause", string(v.cause), "delay_ms", delay.Milliseconds(), "error", v.message)
				if err := c.sleep(ctx, delay); err != nil {
					return contextFailure(ctx, err, attempts)
				}
				continue
			}
			c.breaker.Record(ticket, resilience.Failure)
			log.Warn("generation retries exhausted", "attempts", attempts, "cause", string(v.cause), "error", v.message)
			return failure(v.kind, v.cause, v.userMessage(), attempts)

		case classCanceled:
			c.breaker.Record(ticket, resilience.Ignored)
			return failure(apperr.Canceled, CauseCanceled, "generation canceled", attempts)

		default:
			c.breaker.Record(ticket, resilience.Failure)
			log.Warn("generation failed", "attempts", attempts, "cause", string(v.cause), "error", v.message)
			return failure(v.kind, v.cause, v.userMessage(), attempts)
		}
	}
}

func failure(kind apperr.Kind, cause Cause, message string, attempts int) Outcome {
	return Outcome{Status: StatusFailure, Kind: kind, Cause: cause, Message: message, Attempts: attempts}
}

func contextFailure(ctx context.Context, err error, attempts int) Outcome {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return failure(apperr.Canceled, CauseCanceled, "generation canceled", attempts)
	}
	return failure(apperr.Timeout, CauseTimeout, "generation timed out", attempts)
}

type class int

const (
	classSuccess class = iota
	classQuota
	classRetryable
	classTerminal
	classCanceled
)

type verdict struct {
	class   class
	kind    apperr.Kind
	cause   Cause
	message string
}

func (v verdict) userMessage() string {
	switch v.cause {
	case CauseRateLimit:
		return "Rate limit exceeded. Please try again later."
	case CauseOverloaded:
		return "AI service is currently overloaded. Please try again in a few moments."
	case CauseServer:
		return unavailableMessage
	case CauseBadRequest:
		return "Invalid request format or content: " + v.message
	case CauseAuth:
		return "AI service rejected the configured credentials"
	case CauseNetwork:
		return "Network error reaching the AI service"
	case CauseTimeout:
		return "Request to the AI service timed out"
	default:
		return v.message
	}
}

// classify turns one provider error into a verdict. It runs exactly once per
// attempt, right after the call returns.
func classify(err error) verdict {
	if err == nil {
		return verdict{class: classSuccess}
	}
	if errors.Is(err, context.Canceled) {
		return verdict{class: classCanceled, kind: apperr.Canceled, cause: CauseCanceled, message: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return verdict{class: classTerminal, kind: apperr.Timeout, cause: CauseTimeout, message: err.Error()}
	}

	var apiErr *gemini.Error
	if !errors.As(err, &apiErr) {
		return verdict{class: classTerminal, kind: apperr.ProviderUnavailable, cause: CauseNetwork, message: err.Error()}
	}

	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("status %d", apiErr.StatusCode)
	}
	switch code := apiErr.StatusCode; {
	case code == http.StatusTooManyRequests && isQuotaMessage(msg):
		return verdict{class: classQuota, kind: apperr.QuotaExceeded, cause: CauseQuota, message: msg}
	case code == http.StatusTooManyRequests:
		return verdict{class: classRetryable, kind: apperr.RateLimited, cause: CauseRateLimit, message: msg}
	case code >= 500:
		cause := CauseServer
		if strings.Contains(strings.ToLower(msg), "overloaded") {
			cause = CauseOverloaded
		}
		return verdict{class: classRetryable, kind: apperr.ProviderUnavailable, cause: cause, message: msg}
	case code == http.StatusBadRequest:
		return verdict{class: classTerminal, kind: apperr.InvalidInput, cause: CauseBadRequest, message: msg}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return verdict{class: classTerminal, kind: apperr.ProviderUnavailable, cause: CauseAuth, message: msg}
	default:
		return verdict{class: classTerminal, kind: apperr.ProviderUnavailable, cause: CauseRejected, message: msg}
	}
}

func isQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "billing")
}
