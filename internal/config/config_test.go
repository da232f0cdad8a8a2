package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "  key  ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "key", cfg.Gemini.APIKey)
	assert.Equal(t, GeminiTransportREST, cfg.Gemini.Transport)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 3, cfg.Gemini.MaxRetries)
	assert.Equal(t, time.Second, cfg.Gemini.RetryBase)
	assert.Equal(t, time.Second, cfg.Gemini.MinInterval)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 3, cfg.Breaker.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, 2*time.Hour, cfg.Media.MaxDuration)
	assert.Equal(t, 30*time.Minute, cfg.PPTXTimeout)
	assert.Equal(t, "eng+vie", cfg.OCR.Languages)
	assert.False(t, cfg.Transcription.UseMock)
}

func TestLoadMockFlagAndOverrides(t *testing.T) {
	t.Setenv("USE_MOCK_TRANSCRIPTION", "true")
	t.Setenv("PPTX_TIMEOUT_SECONDS", "5")
	t.Setenv("GEMINI_BASE_URL", "http://localhost:9999/v1beta/")
	t.Setenv("OCR_ENGINE", " GCP-Vision ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Transcription.UseMock)
	assert.Equal(t, 5*time.Second, cfg.PPTXTimeout)
	assert.Equal(t, "http://localhost:9999/v1beta", cfg.Gemini.BaseURL)
	assert.Equal(t, OCREngineGCPVision, cfg.OCR.Engine)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"transport":   {"GEMINI_TRANSPORT", "grpc"},
		"retries":     {"GEMINI_MAX_RETRIES", "-1"},
		"provider":    {"TRANSCRIPTION_PROVIDER", "whisper"},
		"pptx":        {"PPTX_TIMEOUT_SECONDS", "0"},
		"attempts":    {"MEDIA_MAX_ATTEMPTS", "0"},
		"log format":  {"LOG_FORMAT", "xml"},
		"concurrency": {"MEDIA_MAX_CONCURRENT", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), kv[0])
		})
	}
}

func TestValidateJitterOrdering(t *testing.T) {
	t.Setenv("MEDIA_JITTER_MIN_MS", "5000")
	t.Setenv("MEDIA_JITTER_MAX_MS", "1000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEDIA_JITTER_MIN_MS")
}
