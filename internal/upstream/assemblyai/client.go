// Package assemblyai is a minimal REST client for the AssemblyAI
// upload/transcript API.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studyflow/internal/resilience"
	"studyflow/internal/textutil"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"

	maxUploadAttempts = 3
)

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	observer     ObserverFunc
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

type Error struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return "assemblyai: " + e.Message
	}
	if e.Message != "" {
		return fmt.Sprintf("assemblyai request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("assemblyai request failed with status %d", e.StatusCode)
}

type Word struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

type Transcript struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	LanguageCode  string  `json:"language_code"`
	AudioDuration float64 `json:"audio_duration"`
	Words         []Word  `json:"words"`
	Error         string  `json:"error"`
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSleeper replaces the wait used between polls and upload retries.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func New(baseURL, apiKey string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       strings.TrimSpace(apiKey),
		httpClient:   httpClient,
		pollInterval: 3 * time.Second,
		sleep:        resilience.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Transcribe uploads audio, requests a transcript and waits for it to finish.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (Transcript, error) {
	uploadURL, err := c.Upload(ctx, audio)
	if err != nil {
		return Transcript{}, err
	}
	created, err := c.CreateTranscript(ctx, uploadURL)
	if err != nil {
		return Transcript{}, err
	}
	return c.Wait(ctx, created.ID)
}

func (c *Client) Upload(ctx context.Context, audio []byte) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		uploadURL, err := c.upload(ctx, audio)
		if err == nil {
			return uploadURL, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", fmt.Errorf("upload failed: %w", err)
		}
		if ctx.Err() != nil || attempt == maxUploadAttempts {
			break
		}
		if err := c.sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("upload failed after %d attempts: %w", maxUploadAttempts, lastErr)
}

// retryable reports whether an upload failure may succeed on a later
// attempt: transport failures, throttling and server errors.
func retryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

func (c *Client) upload(ctx context.Context, audio []byte) (string, error) {
	var parsed struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(ctx, "upload", http.MethodPost, "/v2/upload", "application/octet-stream", bytes.NewReader(audio), &parsed); err != nil {
		return "", err
	}
	if parsed.UploadURL == "" {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: "missing upload_url"}
	}
	return parsed.UploadURL, nil
}

type transcriptRequest struct {
	AudioURL          string `json:"audio_url"`
	SpeechModel       string `json:"speech_model"`
	LanguageDetection bool   `json:"language_detection"`
	Punctuate         bool   `json:"punctuate"`
	FormatText        bool   `json:"format_text"`
}

func (c *Client) CreateTranscript(ctx context.Context, audioURL string) (Transcript, error) {
	payload, err := json.Marshal(transcriptRequest{
		AudioURL:          audioURL,
		SpeechModel:       "universal",
		LanguageDetection: true,
		Punctuate:         true,
		FormatText:        true,
	})
	if err != nil {
		return Transcript{}, err
	}
	var t Transcript
	if err := c.do(ctx, "transcript_create", http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(payload), &t); err != nil {
		return Transcript{}, err
	}
	if t.ID == "" {
		return Transcript{}, &Error{StatusCode: http.StatusBadGateway, Message: "missing transcript id"}
	}
	return t, nil
}

func (c *Client) GetTranscript(ctx context.Context, id string) (Transcript, error) {
	var t Transcript
	err := c.do(ctx, "transcript_get", http.MethodGet, "/v2/transcript/"+url.PathEscape(id), "", nil, &t)
	return t, err
}

// Wait polls until the transcript completes or errors.
func (c *Client) Wait(ctx context.Context, id string) (Transcript, error) {
	for {
		t, err := c.GetTranscript(ctx, id)
		if err != nil {
			return Transcript{}, err
		}
		switch t.Status {
		case StatusCompleted:
			return t, nil
		case StatusError:
			return Transcript{}, &Error{Message: "transcription failed: " + t.Error}
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return Transcript{}, err
		}
	}
}

func (c *Client) do(ctx context.Context, endpoint, method, path, contentType string, body io.Reader, out any) error {
	if c.apiKey == "" {
		return &Error{StatusCode: http.StatusUnauthorized, Message: "api key is not configured"}
	}

	started := time.Now()
	statusCode := 0
	defer func() { c.observe(endpoint, statusCode, time.Since(started)) }()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("authorization", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{StatusCode: http.StatusBadGateway, Message: "invalid response: " + err.Error(), Body: truncateBody(string(respBody))}
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

func parseError(statusCode int, body []byte) *Error {
	out := &Error{StatusCode: statusCode, Body: truncateBody(string(body))}
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		out.Message = parsed.Error
	} else {
		out.Message = out.Body
	}
	return out
}

const maxErrorBody = 4096

func truncateBody(s string) string {
	return textutil.Abbreviate(strings.TrimSpace(s), maxErrorBody)
}
