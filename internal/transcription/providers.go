package transcription

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"studyflow/internal/apperr"
	"studyflow/internal/upstream/assemblyai"
	"studyflow/internal/upstream/gcp"
)

type assemblyAIClient interface {
	Transcribe(ctx context.Context, audio []byte) (assemblyai.Transcript, error)
}

type AssemblyAI struct {
	client assemblyAIClient
}

func NewAssemblyAI(client assemblyAIClient) *AssemblyAI {
	return &AssemblyAI{client: client}
}

func (a *AssemblyAI) Name() string { return "assemblyai" }

func (a *AssemblyAI) Transcribe(ctx context.Context, audio []byte, fileName string) (Result, error) {
	tr, err := a.client.Transcribe(ctx, audio)
	if err != nil {
		return Result{}, classifyAssemblyAI(err, fileName)
	}
	words := len(tr.Words)
	if words == 0 {
		words = len(strings.Fields(tr.Text))
	}
	return Result{
		Text:            tr.Text,
		Confidence:      tr.Confidence,
		LanguageCode:    tr.LanguageCode,
		DurationSeconds: tr.AudioDuration,
		WordCount:       words,
	}, nil
}

func classifyAssemblyAI(err error, fileName string) error {
	if ctxErr := apperr.FromContext(err); ctxErr != nil {
		return ctxErr
	}
	wrapped := goerr.Wrap(err, "assemblyai transcription", goerr.V("file", fileName))
	var apiErr *assemblyai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return apperr.Wrap(wrapped, apperr.RateLimited, "transcription provider is rate limiting requests")
		case apiErr.StatusCode == http.StatusBadRequest:
			return apperr.Wrap(wrapped, apperr.InvalidInput, "transcription provider rejected the audio")
		}
	}
	return apperr.Wrap(wrapped, apperr.ProviderUnavailable, "transcription provider failed")
}

type speechRecognizer interface {
	Recognize(ctx context.Context, audio []byte, fileName string) (gcp.SpeechTranscript, error)
}

type GCPSpeech struct {
	client speechRecognizer
}

func NewGCPSpeech(client speechRecognizer) *GCPSpeech {
	return &GCPSpeech{client: client}
}

func (g *GCPSpeech) Name() string { return "gcp-speech" }

func (g *GCPSpeech) Transcribe(ctx context.Context, audio []byte, fileName string) (Result, error) {
	tr, err := g.client.Recognize(ctx, audio, fileName)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:            tr.Text,
		Confidence:      tr.Confidence,
		LanguageCode:    tr.LanguageCode,
		DurationSeconds: tr.DurationSeconds,
	}, nil
}
