package config_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framesearch/internal/config"
)

func validEnv() map[string]string {
	return map[string]string{
		"OPENAI_API_KEY":   "sk-test",
		"MINIO_ACCESS_KEY": "minioadmin",
		"MINIO_SECRET_KEY": "minioadmin",
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Threshold)
	assert.Equal(t, 10, cfg.MaxWorkers)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 15, cfg.MinSceneLen)
	assert.Equal(t, "frames", cfg.KeyPrefix)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, config.ProviderOpenAI, cfg.LLMProvider)
	assert.InDelta(t, 0.1, cfg.CaptionTemperature, 1e-6)
	assert.Equal(t, time.Hour, cfg.MinIOPresignExpiry)
}

func TestParseOverrides(t *testing.T) {
	environ := validEnv()
	environ["FRAMESEARCH_THRESHOLD"] = "12.5"
	environ["FRAMESEARCH_MAX_WORKERS"] = "3"
	environ["FRAMESEARCH_TOP_N"] = "7"
	environ["LLM_PROVIDER"] = "ollama"

	cfg, err := config.Parse(environ)
	require.NoError(t, err)

	assert.Equal(t, 12.5, cfg.Threshold)
	assert.Equal(t, 3, cfg.MaxWorkers)
	assert.Equal(t, 7, cfg.TopN)
	assert.Equal(t, config.ProviderOllama, cfg.LLMProvider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "zero workers", mutate: func(c *config.Config) { c.MaxWorkers = 0 }, wantErr: true},
		{name: "zero top-n", mutate: func(c *config.Config) { c.TopN = 0 }, wantErr: true},
		{name: "negative threshold", mutate: func(c *config.Config) { c.Threshold = -1 }, wantErr: true},
		{name: "missing api key", mutate: func(c *config.Config) { c.OpenAIAPIKey = "" }, wantErr: true},
		{name: "ollama needs no api key", mutate: func(c *config.Config) {
			c.OpenAIAPIKey = ""
			c.LLMProvider = config.ProviderOllama
		}},
		{name: "unknown provider", mutate: func(c *config.Config) { c.LLMProvider = "bedrock" }, wantErr: true},
		{name: "missing minio credentials", mutate: func(c *config.Config) { c.MinIOSecretKey = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse(validEnv())
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, config.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, config.ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, config.ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, config.ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, config.ParseLogLevel("nonsense"))
}

func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var console, file bytes.Buffer
	logger := config.SetupLoggerWithWriters("info", &console, &file)

	logger.Debug("hidden")
	logger.Info("frame annotated", "frame", 3)

	assert.Contains(t, console.String(), "frame annotated")
	assert.NotContains(t, console.String(), "hidden")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &record))
	assert.Equal(t, "frame annotated", record["msg"])
	assert.EqualValues(t, 3, record["frame"])
}
