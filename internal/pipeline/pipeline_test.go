package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/bidworks/rfp-qualifier/internal/alignment"
	"github.com/bidworks/rfp-qualifier/internal/chunker"
	"github.com/bidworks/rfp-qualifier/internal/document"
	"github.com/bidworks/rfp-qualifier/internal/eligibility"
	"github.com/bidworks/rfp-qualifier/internal/embedding"
	"github.com/bidworks/rfp-qualifier/internal/vectorindex"
)

// stubEmbedder maps known texts to fixed vectors so retrieval similarities
// are exact and the scenario outcome is predictable.
type stubEmbedder struct {
	mu        sync.Mutex
	dimension int
	vectors   map[string][]float64
	fallback  []float64
	err       error
	calls     int
}

func (s *stubEmbedder) Name() string { return "stub" }

func (s *stubEmbedder) Dimension() int { return s.dimension }

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		if vec, ok := s.vectors[text]; ok {
			out[i] = vec
		} else {
			out[i] = s.fallback
		}
	}

	return out, nil
}

type stubJudge struct {
	judgment *alignment.Judgment
	err      error
}

func (s *stubJudge) Evaluate(_ context.Context, requirement document.Chunk, retrieval document.RetrievalResult) (*alignment.Judgment, error) {
	if s.err != nil {
		return nil, s.err
	}

	j := *s.judgment
	j.RequirementChunkID = requirement.ID
	j.RequirementText = requirement.Text
	j.EvidenceChunkIDs = retrieval.ChunkIDs()

	return &j, nil
}

const (
	requirementText = "Vendor must hold ISO 27001 certification"
	profileText     = "We are ISO 27001 certified and audited annually"
)

func scenarioEmbedder() *stubEmbedder {
	// cosine(requirement, profile) = 0.92, above the fallback high threshold.
	return &stubEmbedder{
		dimension: 3,
		vectors: map[string][]float64{
			requirementText: {1, 0, 0},
			profileText:     {0.92, math.Sqrt(1 - 0.92*0.92), 0},
		},
		fallback: []float64{0, 0, 1},
	}
}

func scenarioConfig() Config {
	return Config{
		ChunkSize:    50,
		ChunkOverlap: 10,
		TopK:         5,
		Eligibility: eligibility.Thresholds{
			EligibilityThreshold: 0.70,
			MinCoverageThreshold: 0.75,
		},
	}
}

func TestNewJobRejectsInvalidChunking(t *testing.T) {
	t.Parallel()

	cfg := scenarioConfig()
	cfg.ChunkSize = 10
	cfg.ChunkOverlap = 10

	if _, err := NewJob(cfg, Deps{Embedder: scenarioEmbedder()}); !errors.Is(err, chunker.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewJobRequiresEmbedder(t *testing.T) {
	t.Parallel()

	if _, err := NewJob(scenarioConfig(), Deps{}); err == nil {
		t.Fatalf("expected an error without an embedder")
	}
}

func TestRunEligibleViaSimilarityFallback(t *testing.T) {
	t.Parallel()

	job, err := NewJob(scenarioConfig(), Deps{Embedder: scenarioEmbedder()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := job.Run(context.Background(), "datacenter-rfp.txt", requirementText, profileText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Eligibility.Eligible {
		t.Fatalf("expected an eligible result: score %f, coverage %f",
			result.Eligibility.TechnicalMatchScore, result.Eligibility.Coverage)
	}
	if len(result.Eligibility.Judgments) != 1 {
		t.Fatalf("expected 1 judgment, got %d", len(result.Eligibility.Judgments))
	}

	judgment := result.Eligibility.Judgments[0]
	if judgment.Verdict != alignment.VerdictAligned {
		t.Fatalf("expected aligned, got %s", judgment.Verdict)
	}
	if judgment.Source != alignment.SourceFallbackSimilarity {
		t.Fatalf("expected fallback source, got %s", judgment.Source)
	}
	if math.Abs(judgment.Confidence-0.92) > 1e-9 {
		t.Fatalf("expected confidence 0.92, got %f", judgment.Confidence)
	}

	doc := result.Document
	if doc == nil || !doc.Eligible {
		t.Fatalf("expected an eligible report document")
	}
	if len(doc.Requirements) != 1 {
		t.Fatalf("expected 1 requirement finding, got %d", len(doc.Requirements))
	}
	if len(doc.Requirements[0].Evidence) != 1 || doc.Requirements[0].Evidence[0].Text != profileText {
		t.Fatalf("expected the profile chunk as cited evidence, got %+v", doc.Requirements[0].Evidence)
	}
}

func TestRunUsesJudgeWhenPresent(t *testing.T) {
	t.Parallel()

	judge := &stubJudge{judgment: &alignment.Judgment{
		Verdict:    alignment.VerdictAligned,
		Confidence: 0.95,
		Rationale:  "certification documented",
		Source:     alignment.SourceLLM,
	}}

	job, err := NewJob(scenarioConfig(), Deps{Embedder: scenarioEmbedder(), Judge: judge})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := job.Run(context.Background(), "rfp.txt", requirementText, profileText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	judgment := result.Eligibility.Judgments[0]
	if judgment.Source != alignment.SourceLLM {
		t.Fatalf("expected llm source, got %s", judgment.Source)
	}
	if judgment.Confidence != 0.95 {
		t.Fatalf("expected judge confidence, got %f", judgment.Confidence)
	}
}

func TestRunFallsBackWhenJudgeFails(t *testing.T) {
	t.Parallel()

	judge := &stubJudge{err: errors.New("backend down")}

	job, err := NewJob(scenarioConfig(), Deps{Embedder: scenarioEmbedder(), Judge: judge})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := job.Run(context.Background(), "rfp.txt", requirementText, profileText)
	if err != nil {
		t.Fatalf("judge failures must not abort the job: %v", err)
	}

	judgment := result.Eligibility.Judgments[0]
	if judgment.Source != alignment.SourceFallbackSimilarity {
		t.Fatalf("expected fallback source, got %s", judgment.Source)
	}
	if result.Document.Statistics.FallbackJudgments != 1 {
		t.Fatalf("expected the fallback to be counted, got %d",
			result.Document.Statistics.FallbackJudgments)
	}
}

func TestRunRejectsEmptyDocumentsBeforeEmbedding(t *testing.T) {
	t.Parallel()

	embedder := scenarioEmbedder()
	job, err := NewJob(scenarioConfig(), Deps{Embedder: embedder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := job.Run(context.Background(), "rfp.txt", "   ", profileText); !errors.Is(err, document.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument for the rfp, got %v", err)
	}
	if _, err := job.Run(context.Background(), "rfp.txt", requirementText, "\n\t"); !errors.Is(err, document.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument for the profile, got %v", err)
	}

	if embedder.calls != 0 {
		t.Fatalf("embedder must not be called for empty documents, got %d calls", embedder.calls)
	}
}

func TestRunAbortsOnEmbedderFailure(t *testing.T) {
	t.Parallel()

	embedder := scenarioEmbedder()
	embedder.err = embedding.ErrBackendUnavailable

	job, err := NewJob(scenarioConfig(), Deps{Embedder: embedder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := job.Run(context.Background(), "rfp.txt", requirementText, profileText)
	if !errors.Is(err, embedding.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if result != nil {
		t.Fatalf("no partial result on abort, got %+v", result)
	}
}

func TestRunAbortsOnDimensionMismatch(t *testing.T) {
	t.Parallel()

	// The embedder declares dimension 3 but produces 2-length vectors, so
	// the index build must fail.
	embedder := &stubEmbedder{
		dimension: 3,
		fallback:  []float64{1, 0},
	}

	job, err := NewJob(scenarioConfig(), Deps{Embedder: embedder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := job.Run(context.Background(), "rfp.txt", requirementText, profileText)
	if !errors.Is(err, vectorindex.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if result != nil {
		t.Fatalf("no partial result on abort, got %+v", result)
	}
}

func TestRunKeepsJudgmentsInRequirementOrder(t *testing.T) {
	t.Parallel()

	// Three requirement chunks of four words each, embedded in batches of
	// one across four workers.
	rfp := "alpha one two three beta one two three gamma one two three"

	cfg := scenarioConfig()
	cfg.ChunkSize = 4
	cfg.ChunkOverlap = 0
	cfg.EmbedBatchSize = 1
	cfg.Concurrency = 4

	embedder := &stubEmbedder{
		dimension: 3,
		vectors: map[string][]float64{
			profileText: {0.92, math.Sqrt(1 - 0.92*0.92), 0},
		},
		fallback: []float64{1, 0, 0},
	}

	job, err := NewJob(cfg, Deps{Embedder: embedder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := job.Run(context.Background(), "rfp.txt", rfp, profileText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"alpha one two three", "beta one two three", "gamma one two three"}
	if len(result.Eligibility.Judgments) != len(want) {
		t.Fatalf("expected %d judgments, got %d", len(want), len(result.Eligibility.Judgments))
	}
	for i, text := range want {
		if result.Eligibility.Judgments[i].RequirementText != text {
			t.Fatalf("judgment %d out of order: got %q, want %q",
				i, result.Eligibility.Judgments[i].RequirementText, text)
		}
	}
}
