// Package pipeline orchestrates one document-to-eligibility scoring job:
// ingest, chunk, embed, index, retrieve, judge, aggregate, assemble.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bidworks/rfp-qualifier/internal/alignment"
	"github.com/bidworks/rfp-qualifier/internal/chunker"
	"github.com/bidworks/rfp-qualifier/internal/document"
	"github.com/bidworks/rfp-qualifier/internal/eligibility"
	"github.com/bidworks/rfp-qualifier/internal/embedding"
	"github.com/bidworks/rfp-qualifier/internal/report"
	"github.com/bidworks/rfp-qualifier/internal/vectorindex"
)

const (
	defaultTopK        = 5
	defaultBatchSize   = 16
	defaultConcurrency = 4
)

// Config carries the recognized job options. Everything else is fixed by
// design.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int

	// EmbedBatchSize and Concurrency bound the embedding fan-out.
	EmbedBatchSize int
	Concurrency    int

	Eligibility eligibility.Thresholds
	Fallback    alignment.SimilarityThresholds
}

// Deps are the job's external collaborators. Judge may be nil, in which case
// every requirement is scored by the similarity fallback.
type Deps struct {
	Embedder embedding.Embedder
	Judge    alignment.Judge
	Logger   *zap.Logger
}

// Job is a single (RFP, company profile) comparison. The vector index it
// builds is owned by the job, so concurrent jobs never cross-contaminate.
type Job struct {
	id         string
	cfg        Config
	deps       Deps
	chunker    *chunker.Chunker
	scorer     *alignment.Scorer
	aggregator *eligibility.Aggregator
	assembler  *report.Assembler
}

// Result is the terminal artifact of a completed job.
type Result struct {
	JobID       string
	Eligibility *eligibility.Report
	Document    *report.Document
}

// NewJob validates the configuration up front, so bad chunking parameters
// are rejected before any processing starts.
func NewJob(cfg Config, deps Deps) (*Job, error) {
	if deps.Embedder == nil {
		return nil, errors.New("an embedder is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	return &Job{
		id:         uuid.NewString(),
		cfg:        cfg,
		deps:       deps,
		chunker:    ch,
		scorer:     alignment.NewScorer(deps.Judge, alignment.NewFallback(cfg.Fallback), deps.Logger),
		aggregator: eligibility.NewAggregator(cfg.Eligibility),
		assembler:  report.NewAssembler(cfg.Eligibility),
	}, nil
}

func (j *Job) ID() string { return j.id }

// Run executes the job end to end. Chunking and index-construction errors
// abort the job (no partial index is trusted); judge failures are absorbed
// by the similarity fallback and never abort.
func (j *Job) Run(ctx context.Context, rfpName, rfpText, profileText string) (*Result, error) {
	logger := j.deps.Logger.With(zap.String("job_id", j.id))

	rfpDoc, err := document.New(document.RoleRFP, rfpName, rfpText)
	if err != nil {
		return nil, err
	}

	profileDoc, err := document.New(document.RoleCompanyProfile, "company profile", profileText)
	if err != nil {
		return nil, err
	}

	requirements := j.chunker.Split(rfpDoc)
	evidence := j.chunker.Split(profileDoc)

	logger.Info("pipeline step",
		zap.String("name", "chunk_documents"),
		zap.Int("requirement_chunks", len(requirements)),
		zap.Int("evidence_chunks", len(evidence)),
	)

	if len(requirements) == 0 {
		return nil, fmt.Errorf("rfp document %q: %w", rfpName, document.ErrEmptyDocument)
	}
	if len(evidence) == 0 {
		return nil, fmt.Errorf("company profile: %w", document.ErrEmptyDocument)
	}

	index, err := j.buildIndex(ctx, evidence)
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline step",
		zap.String("name", "build_index"),
		zap.Int("indexed_chunks", index.Len()),
		zap.Int("dimension", index.Dimension()),
	)

	judgments, evidenceByRequirement, err := j.scoreRequirements(ctx, requirements, index)
	if err != nil {
		return nil, err
	}

	result := j.aggregator.Aggregate(j.id, judgments)
	doc := j.assembler.Assemble(result, rfpName, evidenceByRequirement)

	logger.Info("pipeline step",
		zap.String("name", "aggregate"),
		zap.Float64("technical_match", result.TechnicalMatchScore),
		zap.Float64("coverage", result.Coverage),
		zap.Bool("eligible", result.Eligible),
		zap.Int("fallback_judgments", doc.Statistics.FallbackJudgments),
	)

	return &Result{JobID: j.id, Eligibility: result, Document: doc}, nil
}

// buildIndex embeds the evidence chunks and inserts them in chunk order.
// The build phase finishes before any query is issued.
func (j *Job) buildIndex(ctx context.Context, evidence []document.Chunk) (*vectorindex.Index, error) {
	vectors, err := j.embedChunks(ctx, evidence)
	if err != nil {
		return nil, fmt.Errorf("embedding company profile: %w", err)
	}

	index := vectorindex.New(j.deps.Embedder.Dimension())
	for i, chunk := range evidence {
		if err := index.Add(chunk, vectors[i]); err != nil {
			return nil, fmt.Errorf("building vector index: %w", err)
		}
	}

	return index, nil
}

// embedChunks fans the chunk texts out over bounded concurrent batches. The
// join is order-preserving: each batch writes into its own slots, so vector
// i always belongs to chunk i regardless of completion order.
func (j *Job) embedChunks(ctx context.Context, chunks []document.Chunk) ([][]float64, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors := make([][]float64, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Concurrency)

	for start := 0; start < len(texts); start += j.cfg.EmbedBatchSize {
		end := start + j.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		g.Go(func() error {
			batch, err := j.deps.Embedder.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("chunks %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("chunks %d-%d: got %d vectors for %d inputs: %w",
					start, end-1, len(batch), end-start, embedding.ErrBackendUnavailable)
			}

			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

// scoreRequirements embeds each requirement chunk, retrieves its evidence
// and produces one judgment per requirement. Requirements are independent,
// so they are scored concurrently; the index read path supports that.
func (j *Job) scoreRequirements(ctx context.Context, requirements []document.Chunk, index *vectorindex.Index) ([]*alignment.Judgment, map[string][]report.Excerpt, error) {
	vectors, err := j.embedChunks(ctx, requirements)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding rfp requirements: %w", err)
	}

	judgments := make([]*alignment.Judgment, len(requirements))
	excerpts := make([][]report.Excerpt, len(requirements))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Concurrency)

	for i, requirement := range requirements {
		g.Go(func() error {
			retrieval, err := index.Query(vectors[i], j.cfg.TopK)
			if err != nil {
				return fmt.Errorf("querying evidence for %s: %w", requirement.ID, err)
			}

			judgment := j.scorer.Score(ctx, requirement, retrieval)
			judgments[i] = judgment
			excerpts[i] = citedExcerpts(judgment, retrieval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	evidenceByRequirement := make(map[string][]report.Excerpt, len(requirements))
	for i, judgment := range judgments {
		evidenceByRequirement[judgment.RequirementChunkID] = excerpts[i]
	}

	return judgments, evidenceByRequirement, nil
}

// citedExcerpts resolves the judgment's cited chunk ids back to the
// retrieved texts and similarities, keeping citation order.
func citedExcerpts(judgment *alignment.Judgment, retrieval document.RetrievalResult) []report.Excerpt {
	byID := make(map[string]document.Match, retrieval.Len())
	for _, match := range retrieval.Matches {
		byID[match.Chunk.ID] = match
	}

	cited := make([]report.Excerpt, 0, len(judgment.EvidenceChunkIDs))
	for _, id := range judgment.EvidenceChunkIDs {
		match, ok := byID[id]
		if !ok {
			continue
		}
		cited = append(cited, report.Excerpt{
			ChunkID:    id,
			Text:       match.Chunk.Text,
			Similarity: match.Score,
		})
	}

	return cited
}
