// Package media downloads the audio track of online videos.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/semaphore"

	"studyflow/internal/apperr"
	"studyflow/internal/resilience"
)

type Info struct {
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	Uploader        string  `json:"uploader"`
	Description     string  `json:"description"`
}

// Backend fetches video metadata and audio.
type Backend interface {
	Probe(ctx context.Context, url string) (Info, error)
	Download(ctx context.Context, url, dir string) (string, error)
}

// Audio is a downloaded audio file. Close removes its temp directory.
type Audio struct {
	Info
	URL  string
	Path string

	dir       string
	closeOnce sync.Once
	closeErr  error
}

func (a *Audio) Bytes() ([]byte, error) {
	return os.ReadFile(a.Path)
}

func (a *Audio) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = os.RemoveAll(a.dir)
	})
	return a.closeErr
}

type ObserverFunc func(result string)

type Option func(*Acquirer)

type Acquirer struct {
	backend     Backend
	logger      *slog.Logger
	sem         *semaphore.Weighted
	maxDuration time.Duration
	maxAttempts int
	jitterMin   time.Duration
	jitterMax   time.Duration
	tempDir     string
	jitter      func(lo, hi time.Duration) time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	observer    ObserverFunc
}

func WithMaxDuration(d time.Duration) Option {
	return func(a *Acquirer) {
		if d > 0 {
			a.maxDuration = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(a *Acquirer) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

func WithJitter(lo, hi time.Duration) Option {
	return func(a *Acquirer) {
		if lo >= 0 && hi >= lo {
			a.jitterMin, a.jitterMax = lo, hi
		}
	}
}

func WithMaxConcurrent(n int) Option {
	return func(a *Acquirer) {
		if n > 0 {
			a.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithTempDir(dir string) Option {
	return func(a *Acquirer) {
		a.tempDir = dir
	}
}

func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Acquirer) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

func WithObserver(observer ObserverFunc) Option {
	return func(a *Acquirer) {
		a.observer = observer
	}
}

func NewAcquirer(backend Backend, logger *slog.Logger, opts ...Option) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Acquirer{
		backend:     backend,
		logger:      logger,
		sem:         semaphore.NewWeighted(2),
		maxDuration: 2 * time.Hour,
		maxAttempts: 3,
		jitterMin:   time.Second,
		jitterMax:   3 * time.Second,
		jitter:      uniformJitter,
		sleep:       resilience.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Acquire validates and normalizes rawURL, checks the duration cap and
// downloads the audio. The caller must Close the returned Audio.
func (a *Acquirer) Acquire(ctx context.Context, rawURL string) (*Audio, error) {
	if err := ValidateURL(rawURL); err != nil {
		a.observe("invalid_url")
		return nil, err
	}
	url := CleanURL(rawURL)

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.FromContext(err)
	}
	defer a.sem.Release(1)

	started := time.Now()
	var info Info
	err := a.withRetry(ctx, "probe", url, func() error {
		var err error
		info, err = a.backend.Probe(ctx, url)
		return err
	})
	if err != nil {
		a.observeErr(err)
		return nil, err
	}

	if limit := a.maxDuration.Seconds(); info.DurationSeconds > limit {
		a.observe("too_long")
		return nil, apperr.New(apperr.TooLong,
			fmt.Sprintf("video is %s long, the limit is %s", secondsDuration(info.DurationSeconds), a.maxDuration)).
			WithSuggestion("Choose a shorter video or trim it before uploading the audio.")
	}

	dir, err := os.MkdirTemp(a.tempDir, "studyflow-media-*")
	if err != nil {
		a.observe("failed")
		return nil, apperr.Wrap(goerr.Wrap(err, "create temp dir", goerr.V("base", a.tempDir)), apperr.Internal, "could not allocate temporary storage")
	}

	var path string
	err = a.withRetry(ctx, "download", url, func() error {
		var err error
		path, err = a.backend.Download(ctx, url, dir)
		return err
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		a.observeErr(err)
		return nil, err
	}

	a.observe("ok")
	a.logger.Info("audio acquired",
		"url", url,
		"title", info.Title,
		"duration_seconds", info.DurationSeconds,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return &Audio{Info: info, URL: url, Path: path, dir: dir}, nil
}

// Metadata returns video info without downloading audio. Any failure yields
// a generic placeholder with unknown duration.
func (a *Acquirer) Metadata(ctx context.Context, rawURL string) Info {
	url := CleanURL(rawURL)
	info, err := a.backend.Probe(ctx, url)
	if err != nil {
		a.logger.Warn("metadata probe failed, using placeholder", "url", url, "error", err)
		return Info{
			Title:       "YouTube Video",
			Uploader:    "Unknown",
			Description: "Video information could not be extracted",
		}
	}
	if info.Uploader == "" {
		info.Uploader = "Unknown"
	}
	return info
}

// withRetry repeats fn on network errors with randomized delays. Other
// kinds fail at once.
func (a *Acquirer) withRetry(ctx context.Context, op, url string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperr.Is(err, apperr.NetworkError) || attempt == a.maxAttempts {
			return err
		}
		delay := a.jitter(a.jitterMin, a.jitterMax)
		a.logger.Warn("media request failed, retrying",
			"op", op,
			"url", url,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if sleepErr := a.sleep(ctx, delay); sleepErr != nil {
			return apperr.FromContext(sleepErr)
		}
	}
	return err
}

func (a *Acquirer) observeErr(err error) {
	switch apperr.KindOf(err) {
	case apperr.BotDetected:
		a.observe("bot_detected")
	case apperr.NetworkError:
		a.observe("network_error")
	default:
		a.observe("failed")
	}
}

func (a *Acquirer) observe(result string) {
	if a.observer != nil {
		a.observer(result)
	}
}

func uniformJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Second)
}
