package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{0.3, -0.2, 0.9}, []float32{0.3, -0.2, 0.9}, 1.0},
		{"scaled copy", []float32{1, 2, 3}, []float32{2, 4, 6}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite clamps to zero", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosine_SelfSimilarityIsExactlyOne(t *testing.T) {
	v := []float32{0.12, -0.53, 0.77, 0.01, 0.33}
	assert.Equal(t, 1.0, Cosine(v, v))
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{0.4, 0.1, -0.3}
	b := []float32{0.2, 0.8, 0.1}
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.2))
	assert.Equal(t, 0.0, Clamp(math.NaN()))
	assert.Equal(t, 1.0, Clamp(1.0000001))
	assert.Equal(t, 1.0, Clamp(0.9999999))
	assert.Equal(t, 0.5, Clamp(0.5))
}

func TestNormalize(t *testing.T) {
	result := Normalize([]float32{3.0, 4.0})
	require.Len(t, result, 2)
	assert.InDelta(t, 0.6, result[0], 1e-6)
	assert.InDelta(t, 0.8, result[1], 1e-6)

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)

	assert.Empty(t, Normalize(nil))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	input := []float32{3.0, 4.0}
	_ = Normalize(input)
	assert.Equal(t, []float32{3.0, 4.0}, input)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]float32{0.1, 0.2}, 2))
	assert.True(t, Valid([]float32{0.1, 0.2}, 0))
	assert.False(t, Valid(nil, 0))
	assert.False(t, Valid([]float32{0.1}, 2))
	assert.False(t, Valid([]float32{float32(math.NaN())}, 1))
	assert.False(t, Valid([]float32{float32(math.Inf(1))}, 1))
}

func TestCentroid(t *testing.T) {
	c := Centroid([][]float32{{1, 0}, {0, 1}, nil, {1, 1, 1}})
	require.Len(t, c, 2)
	assert.InDelta(t, 0.5, c[0], 1e-6)
	assert.InDelta(t, 0.5, c[1], 1e-6)

	assert.Nil(t, Centroid(nil))
}
