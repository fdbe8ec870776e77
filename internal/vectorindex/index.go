// Package vectorindex provides a job-scoped in-memory vector index with
// brute-force cosine similarity search. An index instance belongs to one
// processing job; concurrent jobs never share one.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bidworks/rfp-qualifier/internal/document"
)

// ErrDimensionMismatch indicates a vector whose dimension differs from the
// index's established dimension. This is a backend misconfiguration and is
// never retried.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

const defaultTopK = 5

type entry struct {
	chunk  document.Chunk
	vector []float64
}

// Index stores chunk vectors and serves nearest-neighbor queries by cosine
// similarity. Writes happen during the build phase, strictly before queries;
// the read path supports concurrent readers.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
}

// New creates an index with a fixed vector dimension. A non-positive
// dimension leaves it open until the first Add establishes it.
func New(dimension int) *Index {
	return &Index{dimension: dimension}
}

// Add appends a chunk vector. The first vector fixes the index dimension
// when it was left open; any later vector of a different dimension is
// rejected.
func (i *Index) Add(chunk document.Chunk, vector []float64) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for chunk %s", ErrDimensionMismatch, chunk.ID)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dimension <= 0 {
		i.dimension = len(vector)
	}
	if len(vector) != i.dimension {
		return fmt.Errorf("%w: chunk %s has dimension %d, index expects %d",
			ErrDimensionMismatch, chunk.ID, len(vector), i.dimension)
	}

	i.entries = append(i.entries, entry{chunk: chunk, vector: vector})

	return nil
}

// Query returns at most topK chunks ordered by descending cosine similarity.
// Ties keep insertion order. When fewer than topK chunks exist, all are
// returned.
func (i *Index) Query(vector []float64, topK int) (document.RetrievalResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.dimension > 0 && len(vector) != i.dimension {
		return document.RetrievalResult{}, fmt.Errorf("%w: query vector has dimension %d, index expects %d",
			ErrDimensionMismatch, len(vector), i.dimension)
	}

	matches := make([]document.Match, 0, len(i.entries))
	for _, e := range i.entries {
		matches = append(matches, document.Match{
			Chunk: e.chunk,
			Score: cosine(e.vector, vector),
		})
	}

	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })

	if topK < len(matches) {
		matches = matches[:topK]
	}

	return document.RetrievalResult{Matches: matches}, nil
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.entries)
}

// Dimension returns the established vector dimension, 0 when still open.
func (i *Index) Dimension() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.dimension
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for j := range a {
		dot += a[j] * b[j]
		na += a[j] * a[j]
		nb += b[j] * b[j]
	}
	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
