// Package remote implements ai.Embedder against a minimal HTTP embedding
// service: POST {"text": ..., "model": ...} returning {"embedding": [...]}.
// Non-2xx responses are mapped to *ai.ProviderError by status code.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/keywordlens/ai"
)

const maxErrorBody = 512

type embedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embedder calls a remote embedding endpoint.
type Embedder struct {
	url    string
	model  string
	token  string
	client *http.Client
	logger *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedder) {
		e.client = c
	}
}

// NewEmbedder creates an embedder posting to config.EmbeddingHost.
func NewEmbedder(config *ai.Config, opts ...Option) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	e := &Embedder{
		url:    config.EmbeddingHost,
		model:  config.EmbeddingModel,
		token:  config.Token,
		client: &http.Client{},
		logger: slog.Default().With("component", "remote-embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EmbedText posts text and decodes the returned vector.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Text: text, Model: e.model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, &ai.ProviderError{Op: "embed", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" && e.token != "none" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ai.ProviderError{Op: "embed", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.logger.Warn("embedding request rejected", "status", resp.StatusCode)
		return nil, ai.ErrorFromStatus("embed", resp.StatusCode, string(bytes.TrimSpace(snippet)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ai.ProviderError{Op: "embed", StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %w", ai.ErrMalformedEmbedding, err)}
	}
	if len(out.Embedding) == 0 {
		return nil, &ai.ProviderError{Op: "embed", StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: empty embedding", ai.ErrMalformedEmbedding)}
	}
	return out.Embedding, nil
}

// EmbedTexts embeds each text in turn; the endpoint has no batch form.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Provider wraps an Embedder as an ai.AIProvider.
type Provider struct {
	embedder *Embedder
	model    string
}

// NewProvider creates an ai.AIProvider backed by a remote endpoint.
func NewProvider(config *ai.Config, opts ...Option) (ai.AIProvider, error) {
	e, err := NewEmbedder(config, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{embedder: e, model: config.EmbeddingModel}, nil
}

func (p *Provider) Embedder() ai.Embedder { return p.embedder }

func (p *Provider) Model() string { return p.model }

func (p *Provider) Close() error {
	p.embedder.client.CloseIdleConnections()
	return nil
}
