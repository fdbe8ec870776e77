package alignment

import (
	"context"

	"go.uber.org/zap"

	"github.com/bidworks/rfp-qualifier/internal/document"
)

// Scorer selects between the LLM path and the similarity fallback by
// inspecting the judge outcome. The two paths are mutually exclusive per
// call and the result always carries its source.
type Scorer struct {
	judge    Judge
	fallback *Fallback
	logger   *zap.Logger
}

// NewScorer builds a scorer. A nil judge is allowed and sends every
// requirement straight to the fallback.
func NewScorer(judge Judge, fallback *Fallback, logger *zap.Logger) *Scorer {
	if fallback == nil {
		fallback = NewFallback(SimilarityThresholds{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{judge: judge, fallback: fallback, logger: logger}
}

// Score produces exactly one judgment per requirement chunk. Judge failures
// are recovered locally and never surface to the caller; the judgment is
// marked with SourceFallbackSimilarity instead.
func (s *Scorer) Score(ctx context.Context, requirement document.Chunk, retrieval document.RetrievalResult) *Judgment {
	if s.judge == nil {
		return s.fallback.Score(requirement, retrieval)
	}

	judgment, err := s.judge.Evaluate(ctx, requirement, retrieval)
	if err == nil && judgment != nil {
		return judgment
	}

	s.logger.Warn("llm judgment failed, falling back to similarity scoring",
		zap.String("requirement_chunk_id", requirement.ID),
		zap.Error(err),
	)

	return s.fallback.Score(requirement, retrieval)
}
