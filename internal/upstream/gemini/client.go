// Package gemini talks to the Gemini generateContent API over plain REST or
// through the official Go SDK. Both transports return *Error for HTTP-level
// failures so callers can classify on the status code.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studyflow/internal/textutil"
)

const endpointGenerate = "generate_content"

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type GenerationConfig struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{Temperature: 0.7, TopK: 40, TopP: 0.95, MaxOutputTokens: 2048}
}

// SafetyCategories are blocked at medium probability and above on every request.
var SafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

const safetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"

type settings struct {
	observer ObserverFunc
	config   GenerationConfig
}

type Option func(*settings)

func WithObserver(observer ObserverFunc) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

func WithGenerationConfig(cfg GenerationConfig) Option {
	return func(s *settings) {
		s.config = cfg
	}
}

func (s *settings) apply(opts []Option) {
	s.config = DefaultGenerationConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
}

func (s *settings) observe(endpoint string, status int, duration time.Duration) {
	if s.observer != nil {
		s.observer(endpoint, status, duration)
	}
}

type Error struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gemini request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini request failed with status %d", e.StatusCode)
}

// Client is the REST transport.
type Client struct {
	settings
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func New(baseURL, apiKey, model string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: httpClient,
	}
	c.apply(opts)
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &Error{StatusCode: http.StatusUnauthorized, Status: "UNAUTHENTICATED", Message: "api key is not configured"}
	}

	started := time.Now()
	statusCode := 0
	defer func() { c.observe(endpointGenerate, statusCode, time.Since(started)) }()

	payload, err := json.Marshal(c.buildRequest(prompt))
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseError(resp.StatusCode, respBody)
	}
	return parseGenerate(respBody)
}

func (c *Client) buildRequest(prompt string) generateRequest {
	safety := make([]safetySetting, 0, len(SafetyCategories))
	for _, category := range SafetyCategories {
		safety = append(safety, safetySetting{Category: category, Threshold: safetyThreshold})
	}
	return generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.config.Temperature,
			TopK:            c.config.TopK,
			TopP:            c.config.TopP,
			MaxOutputTokens: c.config.MaxOutputTokens,
		},
		SafetySettings: safety,
	}
}

func parseError(statusCode int, body []byte) *Error {
	out := &Error{StatusCode: statusCode, Body: truncateBody(string(body))}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		out.Message = parsed.Error.Message
		out.Status = parsed.Error.Status
	}
	if out.Message == "" {
		out.Message = out.Body
	}
	return out
}

func parseGenerate(data []byte) (string, error) {
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback *struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: "invalid generateContent response: " + err.Error(), Body: truncateBody(string(data))}
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", &Error{StatusCode: http.StatusBadRequest, Status: "BLOCKED", Message: "prompt blocked: " + parsed.PromptFeedback.BlockReason}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: "response has no candidates"}
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", &Error{StatusCode: http.StatusBadGateway, Message: "empty candidate text"}
	}
	return text, nil
}

const maxErrorBody = 4096

func truncateBody(s string) string {
	return textutil.Abbreviate(strings.TrimSpace(s), maxErrorBody)
}
