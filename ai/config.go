// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
	"time"
)

// Embedding drivers.
const (
	DriverOpenAI = "openai" // OpenAI-compatible /v1/embeddings via langchaingo
	DriverHTTP   = "http"   // plain POST {text} -> {embedding} endpoint
)

// Config holds configuration for the embedding provider and the gateway in front of it.
type Config struct {
	// Driver selects the provider implementation: "openai" or "http".
	Driver string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-ada-002", "nomic-embed-text"
	EmbeddingModel string

	// Token is the API key sent to the provider. Local servers accept "none".
	Token string

	// Dimensions is the expected vector length. Zero disables the check.
	Dimensions int

	// Timeout bounds a single provider call.
	Timeout time.Duration

	// MaxRetries bounds retries of transient failures. Zero means one attempt.
	MaxRetries int

	// InitialInterval and MaxInterval shape the exponential backoff between retries.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// BreakerFailures is the number of consecutive failures that opens the circuit.
	BreakerFailures uint32

	// BreakerCooldown is how long the circuit stays open before probing again.
	BreakerCooldown time.Duration

	// MaxTextLength rejects longer inputs before calling the provider.
	MaxTextLength int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDriver selects the provider implementation.
func WithDriver(driver string) ConfigOption {
	return func(c *Config) {
		c.Driver = driver
	}
}

// WithHost sets the embedding service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithToken sets the provider API key.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithDimensions sets the expected embedding dimension.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithRetries sets the retry bound and backoff intervals.
func WithRetries(max int, initial, maxInterval time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = max
		c.InitialInterval = initial
		c.MaxInterval = maxInterval
	}
}

// WithBreaker sets the circuit breaker trip count and cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) ConfigOption {
	return func(c *Config) {
		c.BreakerFailures = failures
		c.BreakerCooldown = cooldown
	}
}

// DefaultConfig returns a Config with sensible defaults for an OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverOpenAI,
		EmbeddingHost:   "http://localhost:11434/v1",
		EmbeddingModel:  "text-embedding-ada-002",
		Token:           "none",
		Dimensions:      1536,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
		MaxTextLength:   8192,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("https://api.openai.com/v1"),
//	    WithToken(os.Getenv("OPENAI_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get a /v1 suffix if missing; the http driver's URL is used verbatim.
func (c *Config) Normalize() {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverOpenAI
	}
	if c.Driver == DriverOpenAI && c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.Token == "" {
		c.Token = "none"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Driver != DriverOpenAI && c.Driver != DriverHTTP {
		return errors.New("ai config: Driver must be \"openai\" or \"http\"")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions cannot be negative")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("ai config: MaxRetries cannot be negative")
	}
	if c.InitialInterval <= 0 || c.MaxInterval < c.InitialInterval {
		return errors.New("ai config: backoff intervals must be positive and MaxInterval >= InitialInterval")
	}
	if c.BreakerFailures == 0 {
		return errors.New("ai config: BreakerFailures must be at least 1")
	}
	return nil
}
