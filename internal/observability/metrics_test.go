package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyflow/internal/generation"
	"studyflow/internal/resilience"
)

func TestMetricsRecordObservations(t *testing.T) {
	m := NewMetrics()

	m.ObserveHTTP("/v1/documents", "POST", 200, 50*time.Millisecond)
	m.UpstreamObserver("gemini")("generateContent", 429, time.Second)
	m.UpstreamObserver("assemblyai")("upload", 0, time.Second)
	m.ObserveGeneration(generation.TaskQuiz, generation.StatusQuotaFallback)
	m.ObserveBreakerTransition(resilience.Closed, resilience.Open)
	m.ObserveTranscription("fallback")
	m.ObserveMediaAcquisition("bot_detected")
	m.ObserveExtraction("pdf", "ok")
	m.ObserveOCR("tesseract", "empty")
	m.ObserveFlow("video", "ok", 2*time.Minute)

	assert.InDelta(t, 1, testutil.ToFloat64(m.upstreamRequestsTotal.WithLabelValues("gemini", "generateContent", "429")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.upstreamRequestsTotal.WithLabelValues("assemblyai", "upload", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.generationOutcomes.WithLabelValues("quiz", "quota_fallback")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.breakerState), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.breakerTransitions.WithLabelValues("open")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.extractions.WithLabelValues("image:tesseract", "empty")), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "studyflow_flow_duration_seconds")
	assert.Contains(t, string(body), "studyflow_media_acquisitions_total")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("/", "GET", 200, time.Millisecond)
		m.UpstreamObserver("gemini")("x", 200, time.Millisecond)
		m.ObserveGeneration(generation.TaskChat, generation.StatusSuccess)
		m.ObserveBreakerTransition(resilience.Open, resilience.HalfOpen)
		m.ObserveFlow("audio", "failed", time.Second)
	})
}
