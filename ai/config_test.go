package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, DriverOpenAI, cfg.Driver)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-ada-002", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host and model", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("http://custom:8080/v1"),
			WithEmbeddingModel("nomic-embed-text"),
			WithDimensions(768),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
		assert.Equal(t, 768, cfg.Dimensions)
	})

	t.Run("with retries and breaker", func(t *testing.T) {
		cfg := NewConfig(
			WithRetries(5, 10*time.Millisecond, 50*time.Millisecond),
			WithBreaker(2, time.Second),
			WithTimeout(time.Second),
		)

		assert.Equal(t, 5, cfg.MaxRetries)
		assert.Equal(t, 10*time.Millisecond, cfg.InitialInterval)
		assert.Equal(t, 50*time.Millisecond, cfg.MaxInterval)
		assert.Equal(t, uint32(2), cfg.BreakerFailures)
		assert.Equal(t, time.Second, cfg.Timeout)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		host     string
		expected string
	}{
		{"adds /v1 for openai", DriverOpenAI, "http://localhost:11434", "http://localhost:11434/v1"},
		{"trims trailing slash", DriverOpenAI, "http://localhost:11434/", "http://localhost:11434/v1"},
		{"keeps existing /v1", DriverOpenAI, "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"http driver untouched", DriverHTTP, "http://embed.internal/api/embed", "http://embed.internal/api/embed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Driver: tt.driver, EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, "none", cfg.Token)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Driver = "grpc" }, "Driver"},
		{"missing host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "Timeout"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "MaxRetries"},
		{"inverted intervals", func(c *Config) { c.MaxInterval = c.InitialInterval / 2 }, "backoff"},
		{"zero breaker", func(c *Config) { c.BreakerFailures = 0 }, "BreakerFailures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
