package utils

import (
	"hash/fnv"
	"math"
	"strings"
)

// StableSeed folds the given parts into a deterministic int64 seed.
func StableSeed(parts ...string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(parts, "\x00")))
	return int64(h.Sum64() & math.MaxInt64)
}

// UnitFraction maps text onto [0,1) deterministically.
func UnitFraction(text string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return float64(h.Sum64()%1_000_000) / 1_000_000
}

// HashVector builds a normalized bag-of-words vector of the given dimension.
// It backs embedding when no embedding model is configured.
func HashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	if dim <= 0 {
		return vec
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		idx := int(h.Sum32() % uint32(dim))
		vec[idx] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
