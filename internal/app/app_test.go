package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyflow/internal/config"
	"studyflow/internal/logging"
	"studyflow/internal/model"
)

func testConfig(geminiURL string) config.Config {
	return config.Config{
		ListenAddr:     ":0",
		MaxUploadBytes: 1 << 20,
		FlowTimeout:    time.Minute,
		LogFormat:      "json",
		Gemini: config.GeminiConfig{
			APIKey:          "test-key",
			Transport:       config.GeminiTransportREST,
			BaseURL:         geminiURL,
			Model:           "gemini-test",
			Timeout:         5 * time.Second,
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 2048,
			MaxRetries:      0,
			RetryBase:       time.Millisecond,
		},
		Breaker: config.BreakerConfig{FailureThreshold: 3, SuccessThreshold: 3, Cooldown: 30 * time.Second},
		Transcription: config.TranscriptionConfig{
			Provider:            config.TranscriptionProviderAssemblyAI,
			UseMock:             true,
			Timeout:             time.Minute,
			MockDefaultDuration: 5 * time.Minute,
		},
		OCR:   config.OCRConfig{Engine: config.OCREngineTesseract, Timeout: time.Minute},
		Media: config.MediaConfig{MaxDuration: time.Hour, MaxAttempts: 1, MaxConcurrent: 1},
	}
}

func geminiServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Cell Biology"}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDocumentFlowThroughHandler(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, &calls)

	a, err := New(context.Background(), testConfig(srv.URL), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "cells.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("The mitochondria is the powerhouse of the cell."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var note model.NoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, "Cell Biology", note.Title)
	assert.Equal(t, "Cell Biology", note.Content)
	assert.Positive(t, calls.Load())

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "studyflow_flow_duration_seconds")
	assert.Contains(t, rec.Body.String(), `provider="gemini"`)
}

func TestMockTranscriptionNeedsNoProvider(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, &calls)

	cfg := testConfig(srv.URL)
	cfg.Transcription.UseMock = false
	cfg.Transcription.AssemblyAIAPIKey = ""

	a, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
