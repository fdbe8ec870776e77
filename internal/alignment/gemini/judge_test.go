package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bidworks/rfp-qualifier/internal/alignment"
	"github.com/bidworks/rfp-qualifier/internal/document"
)

type stubGenerator struct {
	response string
	err      error
	prompt   string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func sampleRetrieval() document.RetrievalResult {
	return document.RetrievalResult{Matches: []document.Match{
		{Chunk: document.Chunk{ID: "ev-1", Text: "ISO 27001 certified since 2021"}, Score: 0.92},
		{Chunk: document.Chunk{ID: "ev-2", Text: "annual security audits"}, Score: 0.55},
	}}
}

func TestEvaluateParsesFencedJSON(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: "```json\n" +
		`{"verdict": "aligned", "confidence": 0.92, "rationale": "certification held", "evidence_chunk_ids": ["ev-1"]}` +
		"\n```"}
	judge := NewJudge(generator, nil, 0)

	judgment, err := judge.Evaluate(context.Background(),
		document.Chunk{ID: "req-1", Text: "must hold ISO 27001"}, sampleRetrieval())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if judgment.Verdict != alignment.VerdictAligned {
		t.Fatalf("expected aligned, got %s", judgment.Verdict)
	}
	if judgment.Confidence != 0.92 {
		t.Fatalf("expected confidence 0.92, got %f", judgment.Confidence)
	}
	if judgment.Source != alignment.SourceLLM {
		t.Fatalf("expected llm source, got %s", judgment.Source)
	}
	if len(judgment.EvidenceChunkIDs) != 1 || judgment.EvidenceChunkIDs[0] != "ev-1" {
		t.Fatalf("unexpected evidence ids: %v", judgment.EvidenceChunkIDs)
	}
}

func TestEvaluatePromptContainsRequirementAndEvidence(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: `{"verdict": "not_aligned", "confidence": 0.1, "rationale": "none"}`}
	judge := NewJudge(generator, nil, 0)

	_, err := judge.Evaluate(context.Background(),
		document.Chunk{ID: "req-1", Text: "must hold ISO 27001"}, sampleRetrieval())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(generator.prompt, "must hold ISO 27001") {
		t.Fatalf("prompt does not contain the requirement text")
	}
	if !strings.Contains(generator.prompt, "ev-1") || !strings.Contains(generator.prompt, "ISO 27001 certified since 2021") {
		t.Fatalf("prompt does not contain the evidence payload")
	}
}

func TestEvaluateCoercesStringConfidence(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: `{"verdict": "partial", "confidence": "0.6", "rationale": "some overlap"}`}
	judge := NewJudge(generator, nil, 0)

	judgment, err := judge.Evaluate(context.Background(),
		document.Chunk{ID: "req-1"}, sampleRetrieval())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if judgment.Verdict != alignment.VerdictPartiallyAligned {
		t.Fatalf("expected partially_aligned, got %s", judgment.Verdict)
	}
	if judgment.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %f", judgment.Confidence)
	}
}

func TestEvaluateClampsConfidence(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: `{"verdict": "aligned", "confidence": 1.7, "rationale": "overconfident"}`}
	judge := NewJudge(generator, nil, 0)

	judgment, err := judge.Evaluate(context.Background(),
		document.Chunk{ID: "req-1"}, sampleRetrieval())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if judgment.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %f", judgment.Confidence)
	}
}

func TestEvaluateRejectsUnknownVerdict(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: `{"verdict": "maybe", "confidence": 0.5}`}
	judge := NewJudge(generator, nil, 0)

	_, err := judge.Evaluate(context.Background(), document.Chunk{ID: "req-1"}, sampleRetrieval())
	if !errors.Is(err, alignment.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestEvaluateRejectsNonJSON(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: "I think the company qualifies."}
	judge := NewJudge(generator, nil, 0)

	_, err := judge.Evaluate(context.Background(), document.Chunk{ID: "req-1"}, sampleRetrieval())
	if !errors.Is(err, alignment.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestEvaluatePropagatesGeneratorError(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("backend down")
	judge := NewJudge(&stubGenerator{err: backendErr}, nil, 0)

	_, err := judge.Evaluate(context.Background(), document.Chunk{ID: "req-1"}, sampleRetrieval())
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestEvaluateFiltersUnknownEvidenceIDs(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: `{"verdict": "aligned", "confidence": 0.8, "rationale": "ok", "evidence_chunk_ids": ["ev-1", "hallucinated"]}`}
	judge := NewJudge(generator, nil, 0)

	judgment, err := judge.Evaluate(context.Background(), document.Chunk{ID: "req-1"}, sampleRetrieval())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(judgment.EvidenceChunkIDs) != 1 || judgment.EvidenceChunkIDs[0] != "ev-1" {
		t.Fatalf("expected only known ids, got %v", judgment.EvidenceChunkIDs)
	}
}

func TestEvaluateDefaultsEvidenceToRetrieval(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{response: `{"verdict": "aligned", "confidence": 0.8, "rationale": "ok"}`}
	judge := NewJudge(generator, nil, 0)

	judgment, err := judge.Evaluate(context.Background(), document.Chunk{ID: "req-1"}, sampleRetrieval())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(judgment.EvidenceChunkIDs) != 2 {
		t.Fatalf("expected retrieval ids as evidence, got %v", judgment.EvidenceChunkIDs)
	}
}

func TestNormalizeVerdictVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		verdict alignment.Verdict
	}{
		{raw: "Aligned", verdict: alignment.VerdictAligned},
		{raw: "MATCH", verdict: alignment.VerdictAligned},
		{raw: "partial match", verdict: alignment.VerdictPartiallyAligned},
		{raw: "Partially-Aligned", verdict: alignment.VerdictPartiallyAligned},
		{raw: "no_match", verdict: alignment.VerdictNotAligned},
		{raw: " none ", verdict: alignment.VerdictNotAligned},
	}

	for _, tt := range tests {
		verdict, ok := normalizeVerdict(tt.raw)
		if !ok {
			t.Fatalf("verdict %q not recognized", tt.raw)
		}
		if verdict != tt.verdict {
			t.Fatalf("verdict %q normalized to %s, want %s", tt.raw, verdict, tt.verdict)
		}
	}

	if _, ok := normalizeVerdict("maybe"); ok {
		t.Fatalf("unknown verdicts must not normalize")
	}
}
