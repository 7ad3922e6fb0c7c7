package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ErrInvalidConfig is returned by Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all runtime settings. Values come from the environment and
// may be overridden by command line flags.
type Config struct {
	Threshold   float64       `env:"FRAMESEARCH_THRESHOLD"     envDefault:"30.0"`
	MinSceneLen int           `env:"FRAMESEARCH_MIN_SCENE_LEN" envDefault:"15"`
	MaxWorkers  int           `env:"FRAMESEARCH_MAX_WORKERS"   envDefault:"10"`
	TopN        int           `env:"FRAMESEARCH_TOP_N"         envDefault:"5"`
	OutputDir   string        `env:"FRAMESEARCH_OUTPUT_DIR"    envDefault:"output_frames"`
	KeyPrefix   string        `env:"FRAMESEARCH_KEY_PREFIX"    envDefault:"frames"`
	CallTimeout time.Duration `env:"FRAMESEARCH_CALL_TIMEOUT"  envDefault:"60s"`
	MaxAttempts int           `env:"FRAMESEARCH_MAX_ATTEMPTS"  envDefault:"3"`

	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	LLMProvider        string  `env:"LLM_PROVIDER"        envDefault:"openai"`
	OpenAIAPIKey       string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string  `env:"OPENAI_BASE_URL"`
	VisionModel        string  `env:"VISION_MODEL"        envDefault:"gpt-4o-mini"`
	EmbeddingModel     string  `env:"EMBEDDING_MODEL"     envDefault:"text-embedding-3-small"`
	CaptionTemperature float32 `env:"CAPTION_TEMPERATURE" envDefault:"0.1"`
	CaptionMaxTokens   int     `env:"CAPTION_MAX_TOKENS"  envDefault:"300"`

	MinIOEndpoint      string        `env:"MINIO_ENDPOINT"        envDefault:"localhost:9000"`
	MinIOAccessKey     string        `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey     string        `env:"MINIO_SECRET_KEY"`
	MinIOUseSSL        bool          `env:"MINIO_USE_SSL"         envDefault:"false"`
	MinIOBucket        string        `env:"MINIO_BUCKET"          envDefault:"frames"`
	MinIOVideoBucket   string        `env:"MINIO_VIDEO_BUCKET"    envDefault:"videos"`
	MinIOPublicBaseURL string        `env:"MINIO_PUBLIC_BASE_URL"`
	MinIOPresignExpiry time.Duration `env:"MINIO_PRESIGN_EXPIRY"  envDefault:"1h"`

	MetricsPort  int    `env:"METRICS_PORT"                envDefault:"0"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL"                   envDefault:"info"`
	LogFile      string `env:"LOG_FILE"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Parse builds a Config from an explicit environment map instead of the
// process environment.
func Parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed for a full pipeline run.
func (c *Config) Validate() error {
	var errs []error

	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be positive, got %v", c.Threshold))
	}
	if c.MaxWorkers <= 0 {
		errs = append(errs, fmt.Errorf("max workers must be positive, got %d", c.MaxWorkers))
	}
	if c.TopN <= 0 {
		errs = append(errs, fmt.Errorf("top-n must be positive, got %d", c.TopN))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout))
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM provider %q", c.LLMProvider))
	}

	if c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
