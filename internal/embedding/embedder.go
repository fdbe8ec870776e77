// Package embedding defines the pluggable text embedding contract consumed
// by the pipeline. Backends map text to fixed-dimension vectors; everything
// downstream is backend-agnostic.
package embedding

import (
	"context"
	"errors"
)

// ErrBackendUnavailable marks transient remote failures (network, auth,
// quota). The caller decides whether to retry, switch backend or abort;
// backends never keep retrying beyond their configured attempts.
var ErrBackendUnavailable = errors.New("embedding backend unavailable")

// Embedder converts texts into numeric vectors, one vector per input,
// order-preserving. Dimension is fixed for the lifetime of the embedder so
// a vector index can rely on it.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
