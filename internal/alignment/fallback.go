package alignment

import (
	"fmt"

	"github.com/bidworks/rfp-qualifier/internal/document"
)

const (
	defaultHighThreshold = 0.8
	defaultLowThreshold  = 0.5
)

// SimilarityThresholds are the named policy values for the similarity-only
// verdict. They come from job configuration, not from constants buried in
// the scorer.
type SimilarityThresholds struct {
	High float64
	Low  float64
}

// Fallback computes a judgment purely from retrieval similarity. It is the
// availability backstop when the LLM path fails, so it depends on no
// external service and never returns an error.
type Fallback struct {
	thresholds SimilarityThresholds
}

func NewFallback(thresholds SimilarityThresholds) *Fallback {
	if thresholds.High <= 0 {
		thresholds.High = defaultHighThreshold
	}
	if thresholds.Low <= 0 {
		thresholds.Low = defaultLowThreshold
	}

	return &Fallback{thresholds: thresholds}
}

// Score derives the verdict from the best similarity in the retrieval
// result. An empty retrieval result yields NotAligned with zero confidence.
func (f *Fallback) Score(requirement document.Chunk, retrieval document.RetrievalResult) *Judgment {
	judgment := &Judgment{
		RequirementChunkID: requirement.ID,
		RequirementText:    requirement.Text,
		EvidenceChunkIDs:   retrieval.ChunkIDs(),
		Verdict:            VerdictNotAligned,
		Source:             SourceFallbackSimilarity,
	}

	best, ok := retrieval.Best()
	if !ok {
		judgment.Rationale = "no evidence retrieved; matched by similarity only, LLM unavailable"
		return judgment
	}

	similarity := clamp01(best.Score)
	judgment.Confidence = similarity

	switch {
	case similarity >= f.thresholds.High:
		judgment.Verdict = VerdictAligned
	case similarity >= f.thresholds.Low:
		judgment.Verdict = VerdictPartiallyAligned
	}

	judgment.Rationale = fmt.Sprintf(
		"matched by similarity only, LLM unavailable: best evidence similarity %.2f (high >= %.2f, low >= %.2f)",
		similarity, f.thresholds.High, f.thresholds.Low,
	)

	return judgment
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
