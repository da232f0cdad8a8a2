// Package app wires configuration into the services shared by the API
// server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"studyflow/internal/config"
	"studyflow/internal/extract"
	"studyflow/internal/generation"
	"studyflow/internal/httpapi"
	"studyflow/internal/media"
	"studyflow/internal/observability"
	"studyflow/internal/ocr"
	"studyflow/internal/pipeline"
	"studyflow/internal/resilience"
	"studyflow/internal/transcription"
	"studyflow/internal/upstream/assemblyai"
	"studyflow/internal/upstream/gcp"
	"studyflow/internal/upstream/gemini"
)

type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Generation *generation.Client
	Pipeline   *pipeline.Service

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	httpClient := newHTTPClient(0)

	provider, err := a.generationProvider(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	breaker := resilience.NewBreaker(
		cfg.Breaker.FailureThreshold,
		cfg.Breaker.SuccessThreshold,
		cfg.Breaker.Cooldown,
		resilience.WithTransitionHook(func(from, to resilience.State) {
			a.Metrics.ObserveBreakerTransition(from, to)
			logger.Warn("circuit breaker transition", "from", from.String(), "to", to.String())
		}),
	)
	a.Generation = generation.New(provider, breaker, resilience.NewMinInterval(cfg.Gemini.MinInterval), logger,
		generation.WithMaxRetries(cfg.Gemini.MaxRetries),
		generation.WithRetryBase(cfg.Gemini.RetryBase),
		generation.WithObserver(a.Metrics.ObserveGeneration),
	)

	speechProvider, err := a.transcriptionProvider(ctx, httpClient)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	transcriber := transcription.New(speechProvider, logger,
		transcription.WithMock(cfg.Transcription.UseMock),
		transcription.WithTimeout(cfg.Transcription.Timeout),
		transcription.WithDefaultDuration(cfg.Transcription.MockDefaultDuration),
		transcription.WithObserver(a.Metrics.ObserveTranscription),
	)

	engine, err := a.ocrEngine(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	images := ocr.New(engine, logger,
		ocr.WithTimeout(cfg.OCR.Timeout),
		ocr.WithObserver(a.Metrics.ObserveOCR),
	)

	extractor := extract.New(logger,
		extract.WithPPTXTimeout(cfg.PPTXTimeout),
		extract.WithObserver(a.Metrics.ObserveExtraction),
	)

	acquirer := media.NewAcquirer(media.NewYTDLP(cfg.Media.YTDLPPath, cfg.Media.ProxyURL, nil), logger,
		media.WithMaxDuration(cfg.Media.MaxDuration),
		media.WithMaxAttempts(cfg.Media.MaxAttempts),
		media.WithJitter(cfg.Media.JitterMin, cfg.Media.JitterMax),
		media.WithMaxConcurrent(cfg.Media.MaxConcurrent),
		media.WithTempDir(cfg.Media.TempDir),
		media.WithObserver(a.Metrics.ObserveMediaAcquisition),
	)

	a.Pipeline = pipeline.New(pipeline.Dependencies{
		Extractor:   extractor,
		Images:      images,
		Media:       acquirer,
		Transcriber: transcriber,
		Generator:   a.Generation,
	}, logger,
		pipeline.WithFlowTimeout(cfg.FlowTimeout),
		pipeline.WithFlowObserver(a.Metrics.ObserveFlow),
	)

	logger.Info("services configured",
		"gemini_transport", cfg.Gemini.Transport,
		"gemini_model", cfg.Gemini.Model,
		"gemini_key_set", cfg.Gemini.APIKey != "",
		"transcription_provider", cfg.Transcription.Provider,
		"transcription_key_set", cfg.Transcription.AssemblyAIAPIKey != "",
		"mock_transcription", cfg.Transcription.UseMock,
		"ocr_engine", cfg.OCR.Engine,
	)
	return a, nil
}

// Handler returns the HTTP surface over the pipeline.
func (a *App) Handler() http.Handler {
	return httpapi.NewServer(a.Config, a.Logger, httpapi.Dependencies{
		Pipeline:       a.Pipeline,
		Metrics:        a.Metrics,
		MetricsHandler: a.Metrics.Handler(),
	})
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) generationProvider(ctx context.Context) (generation.Provider, error) {
	cfg := a.Config.Gemini
	opts := []gemini.Option{
		gemini.WithObserver(a.Metrics.UpstreamObserver("gemini")),
		gemini.WithGenerationConfig(gemini.GenerationConfig{
			Temperature:     cfg.Temperature,
			TopK:            cfg.TopK,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}),
	}
	if cfg.APIKey == "" {
		a.Logger.Warn("GEMINI_API_KEY is not set; generation requests will fail")
	}

	if cfg.Transport == config.GeminiTransportSDK {
		client, err := gemini.NewSDK(ctx, cfg.APIKey, cfg.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create gemini sdk client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	}
	return gemini.New(cfg.BaseURL, cfg.APIKey, cfg.Model, newHTTPClient(cfg.Timeout), opts...), nil
}

func (a *App) transcriptionProvider(ctx context.Context, httpClient *http.Client) (transcription.Provider, error) {
	cfg := a.Config.Transcription
	if cfg.UseMock {
		return nil, nil
	}

	switch cfg.Provider {
	case config.TranscriptionProviderGCPSpeech:
		client, err := gcp.NewSpeech(ctx, cfg.SpeechLanguage, gcp.ClientOptions(a.Config.GCPCredentialsFile)...)
		if err != nil {
			return nil, fmt.Errorf("create speech client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return transcription.NewGCPSpeech(client), nil
	default:
		if cfg.AssemblyAIAPIKey == "" {
			a.Logger.Warn("ASSEMBLYAI_API_KEY is not set; transcripts will be synthesized")
			return nil, nil
		}
		client := assemblyai.New(cfg.AssemblyAIBaseURL, cfg.AssemblyAIAPIKey, httpClient,
			assemblyai.WithPollInterval(cfg.PollInterval),
			assemblyai.WithObserver(a.Metrics.UpstreamObserver("assemblyai")),
		)
		return transcription.NewAssemblyAI(client), nil
	}
}

func (a *App) ocrEngine(ctx context.Context) (ocr.Engine, error) {
	cfg := a.Config.OCR
	if cfg.Engine == config.OCREngineGCPVision {
		client, err := gcp.NewVision(ctx, gcp.ClientOptions(a.Config.GCPCredentialsFile)...)
		if err != nil {
			return nil, fmt.Errorf("create vision client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return ocr.NewVision(client), nil
	}
	return ocr.NewTesseract(cfg.TesseractPath, cfg.Languages, nil), nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
