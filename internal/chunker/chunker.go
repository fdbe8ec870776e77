// Package chunker splits extracted document text into overlapping word
// windows suitable for embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bidworks/rfp-qualifier/internal/document"
)

// ErrInvalidConfig is returned for chunking parameters that can never
// produce a valid chunk sequence.
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Chunker produces deterministic word-window chunks with a fixed overlap.
// Splitting on word boundaries means a chunk never cuts a word in half.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters. The overlap must stay strictly below
// the window size, otherwise the window could never advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)", ErrInvalidConfig, overlap, size)
	}

	return &Chunker{size: size, overlap: overlap}, nil
}

// Split cuts the document into overlapping windows of whitespace-separated
// words. Identical input and configuration always yield the identical chunk
// sequence.
func (c *Chunker) Split(doc *document.Document) []document.Chunk {
	words := strings.Fields(doc.Text)
	if len(words) == 0 {
		return nil
	}

	var chunks []document.Chunk
	start := 0
	seq := 0
	for {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}

		overlap := 0
		if seq > 0 {
			overlap = c.overlap
		}

		chunks = append(chunks, document.Chunk{
			ID:           doc.ID + ":" + strconv.Itoa(seq),
			DocumentID:   doc.ID,
			Seq:          seq,
			Text:         strings.Join(words[start:end], " "),
			OverlapWords: overlap,
		})

		if end == len(words) {
			break
		}

		start = end - c.overlap
		seq++
	}

	return chunks
}

// Reassemble joins chunks back into the normalized document text, dropping
// each chunk's leading overlap words. It exists to keep the reconstruction
// invariant checkable.
func Reassemble(chunks []document.Chunk) string {
	var parts []string
	for _, chunk := range chunks {
		words := strings.Fields(chunk.Text)
		if chunk.OverlapWords < len(words) {
			words = words[chunk.OverlapWords:]
		} else {
			words = nil
		}
		parts = append(parts, words...)
	}

	return strings.Join(parts, " ")
}
