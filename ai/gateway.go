package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/vector"
	"github.com/sony/gobreaker"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeQuery canonicalizes text for cache lookups.
func NormalizeQuery(text string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

// CacheKey builds the cache key for text embedded by model.
func CacheKey(model, text string) string {
	return model + ":" + core.IDFromContent(NormalizeQuery(text)).String()
}

// Gateway is the single entry point to the embedding provider.
// It bounds every call with a timeout, retries transient failures with
// exponential backoff, fails fast while the circuit is open and consults an
// optional vector cache. Gateway implements Embedder.
type Gateway struct {
	embedder Embedder
	config   Config
	model    string
	cache    VectorCache
	breaker  *gobreaker.CircuitBreaker
	monitor  GatewayMonitor
	logger   *slog.Logger
}

var _ Embedder = (*Gateway)(nil)

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway) error

// WithCache enables query vector caching.
func WithCache(cache VectorCache) GatewayOption {
	return func(g *Gateway) error {
		g.cache = cache
		return nil
	}
}

// WithGatewayMonitor registers a monitor for cache and provider events.
func WithGatewayMonitor(m GatewayMonitor) GatewayOption {
	return func(g *Gateway) error {
		if m == nil {
			return errors.New("monitor cannot be nil")
		}
		g.monitor = m
		return nil
	}
}

// WithGatewayLogger sets the gateway logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// NewGateway wraps embedder. model partitions cache entries.
func NewGateway(embedder Embedder, model string, config *Config, opts ...GatewayOption) (*Gateway, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		embedder: embedder,
		config:   *config,
		model:    model,
		monitor:  NoopGatewayMonitor{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "embedding-gateway")

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: 1,
		Timeout:     g.config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= g.config.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			g.monitor.OnBreakerStateChange(from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation and bad input say nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled) || !IsTransient(err)
		},
	})
	return g, nil
}

// Embed resolves text to a vector. Failures after the retry budget is spent
// surface as core.EmbeddingUnavailable.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.InvalidParameters("embed", ErrEmptyText)
	}
	if g.config.MaxTextLength > 0 && len(text) > g.config.MaxTextLength {
		return nil, core.InvalidParameters("embed", fmt.Errorf("%w: %d > %d", ErrTextTooLong, len(text), g.config.MaxTextLength))
	}

	key := CacheKey(g.model, text)
	if g.cache != nil {
		if v, ok := g.cache.Get(ctx, key); ok {
			g.monitor.OnCacheLookup(true)
			return v, nil
		}
		g.monitor.OnCacheLookup(false)
	}

	var vec []float32
	err := g.retry(ctx, func() error {
		v, err := g.attempt(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, core.EmbeddingUnavailable("embed", err)
	}
	// The caller left while the provider answered; drop the result.
	if err := ctx.Err(); err != nil {
		return nil, core.EmbeddingUnavailable("embed", err)
	}

	if g.cache != nil {
		g.cache.Set(ctx, key, vec)
	}
	return vec, nil
}

// EmbedText implements Embedder.
func (g *Gateway) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return g.Embed(ctx, text)
}

// EmbedTexts embeds a batch without consulting the cache.
func (g *Gateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var out [][]float32
	err := g.retry(ctx, func() error {
		res, err := g.guarded(ctx, func(callCtx context.Context) (any, error) {
			vs, err := g.embedder.EmbedTexts(callCtx, texts)
			if err != nil {
				return nil, err
			}
			if len(vs) != len(texts) {
				return nil, &ProviderError{Op: "embed_batch", Err: fmt.Errorf("%w: got %d vectors for %d texts", ErrMalformedEmbedding, len(vs), len(texts))}
			}
			for i, v := range vs {
				if !vector.Valid(v, g.config.Dimensions) {
					return nil, &ProviderError{Op: "embed_batch", Err: fmt.Errorf("%w: item %d", ErrMalformedEmbedding, i)}
				}
			}
			return vs, nil
		})
		if err != nil {
			return err
		}
		out = res.([][]float32)
		return nil
	})
	if err != nil {
		return nil, core.EmbeddingUnavailable("embed_batch", err)
	}
	return out, nil
}

// State returns the circuit breaker state name.
func (g *Gateway) State() string {
	return g.breaker.State().String()
}

func (g *Gateway) attempt(ctx context.Context, text string) ([]float32, error) {
	res, err := g.guarded(ctx, func(callCtx context.Context) (any, error) {
		v, err := g.embedder.EmbedText(callCtx, text)
		if err != nil {
			return nil, err
		}
		if !vector.Valid(v, g.config.Dimensions) {
			return nil, &ProviderError{Op: "embed", Err: fmt.Errorf("%w: length %d, want %d", ErrMalformedEmbedding, len(v), g.config.Dimensions)}
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

type callResult struct {
	value any
	err   error
}

// guarded runs fn through the circuit breaker under the per-call timeout.
// fn runs on its own goroutine; if ctx ends first its result is discarded.
func (g *Gateway) guarded(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	start := time.Now()
	res, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		done := make(chan callResult, 1)
		go func() {
			v, err := fn(callCtx)
			done <- callResult{value: v, err: err}
		}()

		select {
		case r := <-done:
			return r.value, r.err
		case <-callCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &ProviderError{Op: "embed", Transient: true, Err: callCtx.Err()}
		}
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &ProviderError{Op: "embed", Err: fmt.Errorf("%w: %w", ErrCircuitOpen, err)}
	}
	g.monitor.OnProviderCall(time.Since(start), err)
	return res, err
}

func (g *Gateway) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.config.InitialInterval
	b.MaxInterval = g.config.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		g.logger.Debug("embedding call failed", "attempt", attempt, "err", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.config.MaxRetries)), ctx))
}
