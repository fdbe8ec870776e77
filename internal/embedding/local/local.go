// Package local provides a deterministic, dependency-free embedding backend
// based on hashed bag-of-words projection. It exists for air-gapped runs and
// for tests that must not touch a remote model.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultDimension = 256

var tokenRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Embedder hashes lowercased tokens into a fixed-dimension vector and
// L2-normalizes the result, so the dot product of two vectors is their
// cosine similarity. Identical text always produces the identical vector.
type Embedder struct {
	dimension int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = defaultDimension
	}

	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string { return "local" }

func (e *Embedder) Dimension() int { return e.dimension }

// EmbedBatch returns one vector per input text, order-preserving. A text
// without any tokens maps to the zero vector.
func (e *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}

	return vectors, nil
}

func (e *Embedder) embed(text string) []float64 {
	vec := make([]float64, e.dimension)

	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	for _, token := range tokens {
		slot, sign := hashToken(token, e.dimension)
		vec[slot] += sign
	}

	normalize(vec)

	return vec
}

// hashToken maps a token to a vector slot and a +1/-1 sign. The sign bit
// keeps unrelated tokens from always reinforcing each other on collisions.
func hashToken(token string, dimension int) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()

	slot := int(sum % uint64(dimension)) //nolint:gosec // dimension is small and positive
	sign := 1.0
	if sum&(1<<63) != 0 {
		sign = -1.0
	}

	return slot, sign
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}

	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
