package openai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/keywordlens/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Run("rate limit is transient", func(t *testing.T) {
		err := classify("embed", errors.New("API returned unexpected status code: 429: too many requests"))
		var pe *ai.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 429, pe.StatusCode)
		assert.True(t, pe.Transient)
		assert.ErrorIs(t, err, ai.ErrRateLimited)
	})

	t.Run("unauthorized is permanent", func(t *testing.T) {
		err := classify("embed", errors.New("API returned unexpected status code: 401: invalid api key"))
		var pe *ai.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 401, pe.StatusCode)
		assert.False(t, pe.Transient)
	})

	t.Run("transport error is transient", func(t *testing.T) {
		err := classify("embed", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"))
		assert.True(t, ai.IsTransient(err))
	})

	t.Run("context errors pass through", func(t *testing.T) {
		err := classify("embed", fmt.Errorf("post: %w", context.Canceled))
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ai.IsTransient(err))
	})
}

func TestNewProvider_ValidatesConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)

	p, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-ada-002", p.Model())
	assert.NotNil(t, p.Embedder())
	assert.NoError(t, p.Close())
}
