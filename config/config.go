package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/embedcache"
	"github.com/poiesic/keywordlens/readiness"
	"github.com/poiesic/keywordlens/scoring"
)

// CurrentVersion is the document version this package reads and writes.
const CurrentVersion = 1

// Storage drivers.
const (
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

var (
	// ErrUnsupportedVersion indicates a document version this build cannot read.
	ErrUnsupportedVersion = errors.New("unsupported config version")

	// ErrInvalidConfig indicates a document that fails validation.
	ErrInvalidConfig = errors.New("invalid config")
)

// StorageConfig selects and configures the vector repository.
type StorageConfig struct {
	Driver       string        `yaml:"driver"`
	Path         string        `yaml:"path,omitempty"`
	InMemory     bool          `yaml:"in_memory,omitempty"`
	DSN          string        `yaml:"dsn,omitempty"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// EmbeddingConfig configures the embedding provider and its gateway.
type EmbeddingConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Model           string        `yaml:"model"`
	Token           string        `yaml:"token,omitempty"`
	Dimensions      int           `yaml:"dimensions"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
	MaxTextLength   int           `yaml:"max_text_length"`
}

// CacheConfig configures the query vector cache tiers.
type CacheConfig struct {
	Size          int           `yaml:"size"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddress  string        `yaml:"redis_address,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDatabase int           `yaml:"redis_database,omitempty"`
	RedisPrefix   string        `yaml:"redis_prefix,omitempty"`
}

// SearchConfig holds defaults applied when a request leaves a field unset.
type SearchConfig struct {
	DefaultThreshold  float64 `yaml:"default_threshold"`
	DefaultMaxResults int     `yaml:"default_max_results"`
}

// ScoringConfig mirrors scoring.Policy.
type ScoringConfig struct {
	SimilarityWeight  float64 `yaml:"similarity_weight"`
	VolumeWeight      float64 `yaml:"volume_weight"`
	VolumeCeiling     float64 `yaml:"volume_ceiling"`
	IntentBonus       float64 `yaml:"intent_bonus"`
	LexicalWeight     float64 `yaml:"lexical_weight"`
	DifficultyWeight  float64 `yaml:"difficulty_weight"`
	CompetitionLow    float64 `yaml:"competition_low"`
	CompetitionMedium float64 `yaml:"competition_medium"`
	CompetitionHigh   float64 `yaml:"competition_high"`
}

// ReadinessConfig tunes the readiness machine.
type ReadinessConfig struct {
	ReadyTTL             time.Duration `yaml:"ready_ttl"`
	MinKeywordEmbeddings int           `yaml:"min_keyword_embeddings"`
	GateSearches         bool          `yaml:"gate_searches"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the settings document.
type Config struct {
	Version   int             `yaml:"version"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`

	// Extra holds unrecognized top-level keys.
	Extra map[string]any `yaml:",inline"`
}

// Default returns the built-in settings.
func Default() *Config {
	embedding := ai.DefaultConfig()
	policy := scoring.DefaultPolicy()
	return &Config{
		Version: CurrentVersion,
		Storage: StorageConfig{
			Driver:       StorageBadger,
			Path:         "./keywordlens-data",
			QueryTimeout: 5 * time.Second,
			MaxOpenConns: 10,
		},
		Embedding: EmbeddingConfig{
			Driver:          embedding.Driver,
			Host:            embedding.EmbeddingHost,
			Model:           embedding.EmbeddingModel,
			Dimensions:      embedding.Dimensions,
			Timeout:         embedding.Timeout,
			MaxRetries:      embedding.MaxRetries,
			InitialInterval: embedding.InitialInterval,
			MaxInterval:     embedding.MaxInterval,
			BreakerFailures: embedding.BreakerFailures,
			BreakerCooldown: embedding.BreakerCooldown,
			MaxTextLength:   embedding.MaxTextLength,
		},
		Cache: CacheConfig{
			Size: 1000,
			TTL:  embedcache.DefaultTTL,
		},
		Search: SearchConfig{
			DefaultThreshold:  0.7,
			DefaultMaxResults: 20,
		},
		Scoring: ScoringConfig{
			SimilarityWeight:  policy.SimilarityWeight,
			VolumeWeight:      policy.VolumeWeight,
			VolumeCeiling:     policy.VolumeCeiling,
			IntentBonus:       policy.IntentBonus,
			LexicalWeight:     policy.LexicalWeight,
			DifficultyWeight:  policy.DifficultyWeight,
			CompetitionLow:    policy.CompetitionLow,
			CompetitionMedium: policy.CompetitionMedium,
			CompetitionHigh:   policy.CompetitionHigh,
		},
		Readiness: ReadinessConfig{
			ReadyTTL:             readiness.DefaultReadyTTL,
			MinKeywordEmbeddings: readiness.DefaultMinKeywordEmbeddings,
			GateSearches:         true,
		},
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Parse decodes a document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cfg.Version)
	}
	return cfg, nil
}

// Load reads the document at path, applies the environment and validates the
// result. An empty path skips the file and uses the defaults.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the document, including any preserved unknown keys.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the recognized sections.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageBadger:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			return fmt.Errorf("%w: storage.path is required for the badger driver", ErrInvalidConfig)
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for the postgres driver", ErrInvalidConfig)
		}
		if c.Storage.QueryTimeout <= 0 {
			return fmt.Errorf("%w: storage.query_timeout must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if t := c.Search.DefaultThreshold; !(t > 0 && t <= 1) {
		return fmt.Errorf("%w: search.default_threshold must be in (0, 1], got %v", ErrInvalidConfig, t)
	}
	if c.Search.DefaultMaxResults <= 0 {
		return fmt.Errorf("%w: search.default_max_results must be positive", ErrInvalidConfig)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("%w: cache.size cannot be negative", ErrInvalidConfig)
	}
	if c.Readiness.ReadyTTL < 0 || c.Readiness.MinKeywordEmbeddings < 0 {
		return fmt.Errorf("%w: readiness values cannot be negative", ErrInvalidConfig)
	}
	if c.Server.Address == "" {
		return fmt.Errorf("%w: server.address is required", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AIConfig converts the embedding section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	e := c.Embedding
	return ai.NewConfig(
		ai.WithDriver(e.Driver),
		ai.WithHost(e.Host),
		ai.WithEmbeddingModel(e.Model),
		ai.WithToken(e.Token),
		ai.WithDimensions(e.Dimensions),
		ai.WithTimeout(e.Timeout),
		ai.WithRetries(e.MaxRetries, e.InitialInterval, e.MaxInterval),
		ai.WithBreaker(e.BreakerFailures, e.BreakerCooldown),
		func(cfg *ai.Config) { cfg.MaxTextLength = e.MaxTextLength },
	)
}

// Policy converts the scoring section into a scoring.Policy.
func (c *Config) Policy() scoring.Policy {
	s := c.Scoring
	return scoring.Policy{
		SimilarityWeight:  s.SimilarityWeight,
		VolumeWeight:      s.VolumeWeight,
		VolumeCeiling:     s.VolumeCeiling,
		IntentBonus:       s.IntentBonus,
		LexicalWeight:     s.LexicalWeight,
		DifficultyWeight:  s.DifficultyWeight,
		CompetitionLow:    s.CompetitionLow,
		CompetitionMedium: s.CompetitionMedium,
		CompetitionHigh:   s.CompetitionHigh,
	}
}

// RedisConfig returns the shared cache tier settings, or false when Redis is not configured.
func (c *Config) RedisConfig() (embedcache.RedisConfig, bool) {
	if c.Cache.RedisAddress == "" {
		return embedcache.RedisConfig{}, false
	}
	return embedcache.RedisConfig{
		Address:  c.Cache.RedisAddress,
		Password: c.Cache.RedisPassword,
		Database: c.Cache.RedisDatabase,
		Prefix:   c.Cache.RedisPrefix,
		TTL:      c.Cache.TTL,
	}, true
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
