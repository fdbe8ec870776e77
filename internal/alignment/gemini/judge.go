package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/bidworks/rfp-qualifier/internal/alignment"
	"github.com/bidworks/rfp-qualifier/internal/document"
	"github.com/bidworks/rfp-qualifier/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Judge classifies requirement alignment with a Gemini call. Any failure,
// whether transport, timeout or unparseable output, is returned as an error
// for the scorer to recover from; the judge itself never guesses.
type Judge struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewJudge(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Judge{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

type evidenceExcerpt struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// judgmentPayload is the JSON shape the model is instructed to return.
type judgmentPayload struct {
	Verdict          string   `mapstructure:"verdict"`
	Confidence       float64  `mapstructure:"confidence"`
	Rationale        string   `mapstructure:"rationale"`
	EvidenceChunkIDs []string `mapstructure:"evidence_chunk_ids"`
}

// Evaluate builds the judgment prompt from the requirement and the retrieved
// evidence, invokes the model and parses its structured verdict.
func (j *Judge) Evaluate(ctx context.Context, requirement document.Chunk, retrieval document.RetrievalResult) (*alignment.Judgment, error) {
	excerpts := make([]evidenceExcerpt, 0, retrieval.Len())
	for _, match := range retrieval.Matches {
		excerpts = append(excerpts, evidenceExcerpt{
			ChunkID:    match.Chunk.ID,
			Text:       match.Chunk.Text,
			Similarity: match.Score,
		})
	}

	evidenceJSON, err := json.MarshalIndent(excerpts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal evidence payload: %w", err)
	}

	prompt := buildPrompt(requirement.Text, string(evidenceJSON))

	j.logger.Debug("gemini judgment request",
		zap.String("requirement_chunk_id", requirement.ID),
		zap.Int("evidence_count", len(excerpts)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("gemini judgment response",
		zap.String("requirement_chunk_id", requirement.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
	)

	payload, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	verdict, ok := normalizeVerdict(payload.Verdict)
	if !ok {
		return nil, fmt.Errorf("%w: unknown verdict %q", alignment.ErrMalformedResponse, payload.Verdict)
	}

	evidenceIDs := filterKnownIDs(payload.EvidenceChunkIDs, retrieval)
	if len(evidenceIDs) == 0 {
		evidenceIDs = retrieval.ChunkIDs()
	}

	return &alignment.Judgment{
		RequirementChunkID: requirement.ID,
		RequirementText:    requirement.Text,
		EvidenceChunkIDs:   evidenceIDs,
		Verdict:            verdict,
		Confidence:         clamp01(payload.Confidence),
		Rationale:          payload.Rationale,
		Source:             alignment.SourceLLM,
	}, nil
}

func buildPrompt(requirement, evidenceJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Requirement:\n{{REQUIREMENT}}\n\nEvidence:\n{{EVIDENCE_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{REQUIREMENT}}", requirement)
	prompt = strings.ReplaceAll(prompt, "{{EVIDENCE_JSON}}", evidenceJSON)
	return prompt
}

func parseResponse(raw string) (*judgmentPayload, error) {
	cleaned := extractJSON(strings.TrimSpace(raw))

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", alignment.ErrMalformedResponse, err)
	}

	var payload judgmentPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &payload,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build payload decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", alignment.ErrMalformedResponse, err)
	}

	return &payload, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func normalizeVerdict(raw string) (alignment.Verdict, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch normalized {
	case "aligned", "match", "full", "fully_aligned":
		return alignment.VerdictAligned, true
	case "partially_aligned", "partial", "partial_match":
		return alignment.VerdictPartiallyAligned, true
	case "not_aligned", "no_match", "unaligned", "none":
		return alignment.VerdictNotAligned, true
	default:
		return "", false
	}
}

func filterKnownIDs(ids []string, retrieval document.RetrievalResult) []string {
	known := make(map[string]struct{}, retrieval.Len())
	for _, match := range retrieval.Matches {
		known[match.Chunk.ID] = struct{}{}
	}

	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := known[id]; ok {
			filtered = append(filtered, id)
		}
	}

	return filtered
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
