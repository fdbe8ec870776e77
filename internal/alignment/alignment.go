// Package alignment turns retrieval results into structured judgments about
// how well company-profile evidence aligns with an RFP requirement.
package alignment

import (
	"context"
	"errors"

	"github.com/bidworks/rfp-qualifier/internal/document"
)

// Verdict classifies how well the evidence covers a requirement.
type Verdict string

const (
	VerdictAligned          Verdict = "aligned"
	VerdictPartiallyAligned Verdict = "partially_aligned"
	VerdictNotAligned       Verdict = "not_aligned"
)

// Source records which path produced a judgment.
type Source string

const (
	SourceLLM                Source = "llm"
	SourceFallbackSimilarity Source = "fallback_similarity"
)

// ErrMalformedResponse indicates the language model returned output that
// could not be parsed into a judgment. It is treated exactly like an
// unavailable backend: the similarity fallback takes over.
var ErrMalformedResponse = errors.New("llm response malformed")

// Judgment is the structured outcome of evaluating one requirement chunk
// against the retrieved evidence.
type Judgment struct {
	RequirementChunkID string
	RequirementText    string
	EvidenceChunkIDs   []string
	Verdict            Verdict
	Confidence         float64
	Rationale          string
	Source             Source
}

// Judge is the LLM-backed capability. Implementations return an error on
// backend failure or unparseable output; they never guess.
type Judge interface {
	Evaluate(ctx context.Context, requirement document.Chunk, retrieval document.RetrievalResult) (*Judgment, error)
}

// Weight maps a verdict to its contribution to the technical match score.
func (v Verdict) Weight() float64 {
	switch v {
	case VerdictAligned:
		return 1.0
	case VerdictPartiallyAligned:
		return 0.5
	default:
		return 0.0
	}
}
