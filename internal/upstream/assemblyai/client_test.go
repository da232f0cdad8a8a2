package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestTranscribeUploadsCreatesAndPolls(t *testing.T) {
	var polls atomic.Int32
	var created transcriptRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authorization") != "secret" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "RIFFaudio" {
			t.Errorf("unexpected upload body %q", body)
		}
		_, _ = io.WriteString(w, `{"upload_url":"https://cdn.example/audio-1"}`)
	})
	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&created)
		_, _ = io.WriteString(w, `{"id":"tr_1","status":"queued"}`)
	})
	mux.HandleFunc("GET /v2/transcript/tr_1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = io.WriteString(w, `{"id":"tr_1","status":"processing"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"tr_1","status":"completed","text":"Hello class.","confidence":0.93,"language_code":"en_us","audio_duration":12.5,"words":[{"text":"Hello"},{"text":"class."}]}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	var endpoints []string
	c := New(ts.URL, "secret", ts.Client(), WithSleeper(noSleep), WithObserver(func(endpoint string, status int, _ time.Duration) {
		endpoints = append(endpoints, endpoint)
		assert.Equal(t, http.StatusOK, status)
	}))

	tr, err := c.Transcribe(context.Background(), []byte("RIFFaudio"))
	require.NoError(t, err)

	assert.Equal(t, "Hello class.", tr.Text)
	assert.InDelta(t, 0.93, tr.Confidence, 0.0001)
	assert.Equal(t, "en_us", tr.LanguageCode)
	assert.InDelta(t, 12.5, tr.AudioDuration, 0.0001)
	assert.Len(t, tr.Words, 2)
	assert.EqualValues(t, 3, polls.Load())

	assert.Equal(t, "https://cdn.example/audio-1", created.AudioURL)
	assert.Equal(t, "universal", created.SpeechModel)
	assert.True(t, created.LanguageDetection)
	assert.True(t, created.Punctuate)
	assert.True(t, created.FormatText)
	assert.Equal(t, []string{"upload", "transcript_create", "transcript_get", "transcript_get", "transcript_get"}, endpoints)
}

func TestWaitReturnsProviderError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"tr_2","status":"error","error":"Audio file is corrupted"}`)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "k", ts.Client(), WithSleeper(noSleep)).Wait(context.Background(), "tr_2")

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "Audio file is corrupted")
}

func TestUploadRetriesWithLinearBackoff(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":"upstream"}`)
	}))
	defer ts.Close()

	var waits []time.Duration
	c := New(ts.URL, "k", ts.Client(), WithSleeper(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))

	_, err := c.Upload(context.Background(), []byte("x"))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream", apiErr.Message)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestUploadDoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"rejected"}`)
		}))

		slept := false
		c := New(ts.URL, "k", ts.Client(), WithSleeper(func(context.Context, time.Duration) error {
			slept = true
			return nil
		}))
		_, err := c.Upload(context.Background(), []byte("x"))
		ts.Close()

		var apiErr *Error
		require.True(t, errors.As(err, &apiErr), status)
		assert.Equal(t, status, apiErr.StatusCode)
		assert.EqualValues(t, 1, calls.Load(), status)
		assert.False(t, slept, status)
	}
}

func TestUploadRetriesNetworkErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := ts.URL
	ts.Close()

	var waits int
	c := New(addr, "k", nil, WithSleeper(func(context.Context, time.Duration) error {
		waits++
		return nil
	}))
	_, err := c.Upload(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 2, waits)
}

func TestMissingAPIKeyFailsWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer ts.Close()

	c := New(ts.URL, "", ts.Client(), WithSleeper(noSleep))
	assert.False(t, c.Configured())

	_, err := c.Transcribe(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestWaitHonorsCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"tr_3","status":"processing"}`)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(ts.URL, "k", ts.Client(), WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := c.Wait(ctx, "tr_3")
	assert.ErrorIs(t, err, context.Canceled)
}
