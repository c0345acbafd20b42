package vector

import "math"

// Epsilon is the tolerance used to snap near-identical vectors to similarity 1.0.
const Epsilon = 1e-6

// Cosine returns the cosine similarity of a and b clamped to [0, 1].
// Vectors of different length, empty vectors and zero vectors have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return Clamp(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Clamp maps a raw cosine value into [0, 1], snapping values within Epsilon of 1.
func Clamp(sim float64) float64 {
	switch {
	case math.IsNaN(sim):
		return 0
	case sim >= 1-Epsilon:
		return 1
	case sim < 0:
		return 0
	}
	return sim
}

// Normalize returns a unit-length copy of v.
// A zero vector normalizes to a zero vector of the same length.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// Valid reports whether v is non-empty, has the expected dimension (when dim > 0)
// and contains only finite values.
func Valid(v []float32, dim int) bool {
	if len(v) == 0 {
		return false
	}
	if dim > 0 && len(v) != dim {
		return false
	}
	for _, val := range v {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Centroid returns the element-wise mean of vectors sharing the first vector's
// dimension. Vectors of other dimensions are skipped. Returns nil for no input.
func Centroid(vectors [][]float32) []float32 {
	var (
		sum   []float64
		count int
	)
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		for i, val := range v {
			sum[i] += float64(val)
		}
		count++
	}
	if count == 0 {
		return nil
	}
	out := make([]float32, len(sum))
	for i, s := range sum {
		out[i] = float32(s / float64(count))
	}
	return out
}
