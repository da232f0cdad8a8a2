package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

const (
	GeminiTransportREST = "rest"
	GeminiTransportSDK  = "sdk"

	TranscriptionProviderAssemblyAI = "assemblyai"
	TranscriptionProviderGCPSpeech  = "gcp-speech"

	OCREngineTesseract = "tesseract"
	OCREngineGCPVision = "gcp-vision"
)

type Config struct {
	ListenAddr     string
	APIAuthToken   string
	MaxUploadBytes int64
	FlowTimeout    time.Duration

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	Gemini  GeminiConfig
	Breaker BreakerConfig

	Transcription TranscriptionConfig
	OCR           OCRConfig
	Media         MediaConfig

	PPTXTimeout        time.Duration
	GCPCredentialsFile string
}

type GeminiConfig struct {
	APIKey          string
	Transport       string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	MaxRetries      int
	RetryBase       time.Duration
	MinInterval     time.Duration
}

type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

type TranscriptionConfig struct {
	Provider            string
	AssemblyAIAPIKey    string
	AssemblyAIBaseURL   string
	PollInterval        time.Duration
	Timeout             time.Duration
	UseMock             bool
	MockDefaultDuration time.Duration
	SpeechLanguage      string
}

type OCRConfig struct {
	Engine        string
	TesseractPath string
	Languages     string
	Timeout       time.Duration
}

type MediaConfig struct {
	YTDLPPath     string
	MaxDuration   time.Duration
	MaxAttempts   int
	JitterMin     time.Duration
	JitterMax     time.Duration
	MaxConcurrent int
	ProxyURL      string
	TempDir       string
}

type envConfig struct {
	ListenAddr         string `env:"LISTEN_ADDR" envDefault:":8080"`
	APIAuthToken       string `env:"API_AUTH_TOKEN"`
	MaxUploadBytes     int64  `env:"MAX_UPLOAD_BYTES" envDefault:"104857600"`
	FlowTimeoutSeconds int    `env:"FLOW_TIMEOUT_SECONDS" envDefault:"1800"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`

	GeminiAPIKey          string  `env:"GEMINI_API_KEY"`
	GeminiTransport       string  `env:"GEMINI_TRANSPORT" envDefault:"rest"`
	GeminiBaseURL         string  `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiModel           string  `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiTimeoutSeconds  int     `env:"GEMINI_TIMEOUT_SECONDS" envDefault:"180"`
	GeminiTemperature     float64 `env:"GEMINI_TEMPERATURE" envDefault:"0.7"`
	GeminiTopK            int     `env:"GEMINI_TOP_K" envDefault:"40"`
	GeminiTopP            float64 `env:"GEMINI_TOP_P" envDefault:"0.95"`
	GeminiMaxOutputTokens int     `env:"GEMINI_MAX_OUTPUT_TOKENS" envDefault:"2048"`
	GeminiMaxRetries      int     `env:"GEMINI_MAX_RETRIES" envDefault:"3"`
	GeminiRetryBaseMS     int     `env:"GEMINI_RETRY_BASE_MS" envDefault:"1000"`
	GeminiMinIntervalMS   int     `env:"GEMINI_MIN_INTERVAL_MS" envDefault:"1000"`

	BreakerFailureThreshold int `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"3"`
	BreakerSuccessThreshold int `env:"BREAKER_SUCCESS_THRESHOLD" envDefault:"3"`
	BreakerCooldownSeconds  int `env:"BREAKER_COOLDOWN_SECONDS" envDefault:"30"`

	TranscriptionProvider       string `env:"TRANSCRIPTION_PROVIDER" envDefault:"assemblyai"`
	AssemblyAIAPIKey            string `env:"ASSEMBLYAI_API_KEY"`
	AssemblyAIBaseURL           string `env:"ASSEMBLYAI_BASE_URL" envDefault:"https://api.assemblyai.com"`
	AssemblyAIPollIntervalMS    int    `env:"ASSEMBLYAI_POLL_INTERVAL_MS" envDefault:"3000"`
	TranscriptionTimeoutSeconds int    `env:"TRANSCRIPTION_TIMEOUT_SECONDS" envDefault:"1800"`
	UseMockTranscription        bool   `env:"USE_MOCK_TRANSCRIPTION" envDefault:"false"`
	MockDefaultDurationSeconds  int    `env:"MOCK_DEFAULT_DURATION_SECONDS" envDefault:"300"`
	GCPSpeechLanguage           string `env:"GCP_SPEECH_LANGUAGE" envDefault:"en-US"`

	OCREngine         string `env:"OCR_ENGINE" envDefault:"tesseract"`
	TesseractPath     string `env:"TESSERACT_PATH" envDefault:"tesseract"`
	OCRLanguages      string `env:"OCR_LANGUAGES" envDefault:"eng+vie"`
	OCRTimeoutSeconds int    `env:"OCR_TIMEOUT_SECONDS" envDefault:"120"`

	YTDLPPath               string `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	MediaMaxDurationSeconds int    `env:"MEDIA_MAX_DURATION_SECONDS" envDefault:"7200"`
	MediaMaxAttempts        int    `env:"MEDIA_MAX_ATTEMPTS" envDefault:"3"`
	MediaJitterMinMS        int    `env:"MEDIA_JITTER_MIN_MS" envDefault:"1000"`
	MediaJitterMaxMS        int    `env:"MEDIA_JITTER_MAX_MS" envDefault:"3000"`
	MediaMaxConcurrent      int    `env:"MEDIA_MAX_CONCURRENT" envDefault:"2"`
	MediaProxyURL           string `env:"MEDIA_PROXY_URL"`
	MediaTempDir            string `env:"MEDIA_TEMP_DIR"`

	PPTXTimeoutSeconds int    `env:"PPTX_TIMEOUT_SECONDS" envDefault:"1800"`
	GCPCredentialsFile string `env:"GCP_CREDENTIALS_FILE"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := fromEnv(raw)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv(raw envConfig) Config {
	return Config{
		ListenAddr:     strings.TrimSpace(raw.ListenAddr),
		APIAuthToken:   strings.TrimSpace(raw.APIAuthToken),
		MaxUploadBytes: raw.MaxUploadBytes,
		FlowTimeout:    seconds(raw.FlowTimeoutSeconds),

		LogLevel:      lower(raw.LogLevel),
		LogFormat:     lower(raw.LogFormat),
		LogFile:       strings.TrimSpace(raw.LogFile),
		LogMaxSizeMB:  raw.LogMaxSizeMB,
		LogMaxBackups: raw.LogMaxBackups,
		LogMaxAgeDays: raw.LogMaxAgeDays,

		Gemini: GeminiConfig{
			APIKey:          strings.TrimSpace(raw.GeminiAPIKey),
			Transport:       lower(raw.GeminiTransport),
			BaseURL:         strings.TrimRight(strings.TrimSpace(raw.GeminiBaseURL), "/"),
			Model:           strings.TrimSpace(raw.GeminiModel),
			Timeout:         seconds(raw.GeminiTimeoutSeconds),
			Temperature:     raw.GeminiTemperature,
			TopK:            raw.GeminiTopK,
			TopP:            raw.GeminiTopP,
			MaxOutputTokens: raw.GeminiMaxOutputTokens,
			MaxRetries:      raw.GeminiMaxRetries,
			RetryBase:       millis(raw.GeminiRetryBaseMS),
			MinInterval:     millis(raw.GeminiMinIntervalMS),
		},
		Breaker: BreakerConfig{
			FailureThreshold: raw.BreakerFailureThreshold,
			SuccessThreshold: raw.BreakerSuccessThreshold,
			Cooldown:         seconds(raw.BreakerCooldownSeconds),
		},
		Transcription: TranscriptionConfig{
			Provider:            lower(raw.TranscriptionProvider),
			AssemblyAIAPIKey:    strings.TrimSpace(raw.AssemblyAIAPIKey),
			AssemblyAIBaseURL:   strings.TrimRight(strings.TrimSpace(raw.AssemblyAIBaseURL), "/"),
			PollInterval:        millis(raw.AssemblyAIPollIntervalMS),
			Timeout:             seconds(raw.TranscriptionTimeoutSeconds),
			UseMock:             raw.UseMockTranscription,
			MockDefaultDuration: seconds(raw.MockDefaultDurationSeconds),
			SpeechLanguage:      strings.TrimSpace(raw.GCPSpeechLanguage),
		},
		OCR: OCRConfig{
			Engine:        lower(raw.OCREngine),
			TesseractPath: strings.TrimSpace(raw.TesseractPath),
			Languages:     strings.TrimSpace(raw.OCRLanguages),
			Timeout:       seconds(raw.OCRTimeoutSeconds),
		},
		Media: MediaConfig{
			YTDLPPath:     strings.TrimSpace(raw.YTDLPPath),
			MaxDuration:   seconds(raw.MediaMaxDurationSeconds),
			MaxAttempts:   raw.MediaMaxAttempts,
			JitterMin:     millis(raw.MediaJitterMinMS),
			JitterMax:     millis(raw.MediaJitterMaxMS),
			MaxConcurrent: raw.MediaMaxConcurrent,
			ProxyURL:      strings.TrimSpace(raw.MediaProxyURL),
			TempDir:       strings.TrimSpace(raw.MediaTempDir),
		},
		PPTXTimeout:        seconds(raw.PPTXTimeoutSeconds),
		GCPCredentialsFile: strings.TrimSpace(raw.GCPCredentialsFile),
	}
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.FlowTimeout <= 0 {
		return errors.New("FLOW_TIMEOUT_SECONDS must be > 0")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}

	switch c.Gemini.Transport {
	case GeminiTransportREST, GeminiTransportSDK:
	default:
		return fmt.Errorf("GEMINI_TRANSPORT must be %q or %q, got %q", GeminiTransportREST, GeminiTransportSDK, c.Gemini.Transport)
	}
	if c.Gemini.BaseURL == "" {
		return errors.New("GEMINI_BASE_URL must not be empty")
	}
	if c.Gemini.Model == "" {
		return errors.New("GEMINI_MODEL must not be empty")
	}
	if c.Gemini.Timeout <= 0 {
		return errors.New("GEMINI_TIMEOUT_SECONDS must be > 0")
	}
	if c.Gemini.MaxOutputTokens <= 0 {
		return errors.New("GEMINI_MAX_OUTPUT_TOKENS must be > 0")
	}
	if c.Gemini.MaxRetries < 0 {
		return errors.New("GEMINI_MAX_RETRIES must be >= 0")
	}
	if c.Gemini.RetryBase < 0 {
		return errors.New("GEMINI_RETRY_BASE_MS must be >= 0")
	}
	if c.Gemini.MinInterval < 0 {
		return errors.New("GEMINI_MIN_INTERVAL_MS must be >= 0")
	}

	if c.Breaker.FailureThreshold <= 0 {
		return errors.New("BREAKER_FAILURE_THRESHOLD must be > 0")
	}
	if c.Breaker.SuccessThreshold <= 0 {
		return errors.New("BREAKER_SUCCESS_THRESHOLD must be > 0")
	}
	if c.Breaker.Cooldown <= 0 {
		return errors.New("BREAKER_COOLDOWN_SECONDS must be > 0")
	}

	switch c.Transcription.Provider {
	case TranscriptionProviderAssemblyAI, TranscriptionProviderGCPSpeech:
	default:
		return fmt.Errorf("TRANSCRIPTION_PROVIDER must be %q or %q, got %q", TranscriptionProviderAssemblyAI, TranscriptionProviderGCPSpeech, c.Transcription.Provider)
	}
	if c.Transcription.PollInterval <= 0 {
		return errors.New("ASSEMBLYAI_POLL_INTERVAL_MS must be > 0")
	}
	if c.Transcription.Timeout <= 0 {
		return errors.New("TRANSCRIPTION_TIMEOUT_SECONDS must be > 0")
	}
	if c.Transcription.MockDefaultDuration <= 0 {
		return errors.New("MOCK_DEFAULT_DURATION_SECONDS must be > 0")
	}

	switch c.OCR.Engine {
	case OCREngineTesseract, OCREngineGCPVision:
	default:
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", OCREngineTesseract, OCREngineGCPVision, c.OCR.Engine)
	}
	if c.OCR.Engine == OCREngineTesseract && c.OCR.TesseractPath == "" {
		return errors.New("TESSERACT_PATH must not be empty")
	}
	if c.OCR.Timeout <= 0 {
		return errors.New("OCR_TIMEOUT_SECONDS must be > 0")
	}

	if c.Media.YTDLPPath == "" {
		return errors.New("YTDLP_PATH must not be empty")
	}
	if c.Media.MaxDuration <= 0 {
		return errors.New("MEDIA_MAX_DURATION_SECONDS must be > 0")
	}
	if c.Media.MaxAttempts <= 0 {
		return errors.New("MEDIA_MAX_ATTEMPTS must be > 0")
	}
	if c.Media.JitterMin < 0 || c.Media.JitterMax < 0 {
		return errors.New("MEDIA_JITTER_MIN_MS and MEDIA_JITTER_MAX_MS must be >= 0")
	}
	if c.Media.JitterMin > c.Media.JitterMax {
		return errors.New("MEDIA_JITTER_MIN_MS must be <= MEDIA_JITTER_MAX_MS")
	}
	if c.Media.MaxConcurrent <= 0 {
		return errors.New("MEDIA_MAX_CONCURRENT must be > 0")
	}

	if c.PPTXTimeout <= 0 {
		return errors.New("PPTX_TIMEOUT_SECONDS must be > 0")
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
