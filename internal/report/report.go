// Package report assembles the terminal, renderable report structure from an
// eligibility result. It only builds the structure; JSON serialization is
// offered as a convenience and PDF templating stays a separate collaborator.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/bidworks/rfp-qualifier/internal/alignment"
	"github.com/bidworks/rfp-qualifier/internal/eligibility"
)

// Scores presents the aggregate values as percentages, the way renderers
// display them.
type Scores struct {
	OverallScore        float64 `json:"overall_score"`
	TechnicalMatch      float64 `json:"technical_match"`
	RequirementCoverage float64 `json:"requirement_coverage"`
}

// Excerpt is a cited piece of company-profile evidence.
type Excerpt struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// RequirementFinding is the per-requirement breakdown with cited evidence.
type RequirementFinding struct {
	RequirementChunkID string    `json:"requirement_chunk_id"`
	Requirement        string    `json:"requirement"`
	Verdict            string    `json:"verdict"`
	Confidence         float64   `json:"confidence"`
	Rationale          string    `json:"rationale"`
	Source             string    `json:"source"`
	Evidence           []Excerpt `json:"evidence"`
}

// Qualification categorizes a requirement by the kind of credential it asks
// for and whether the evidence met it.
type Qualification struct {
	Type    string `json:"type"`
	Details string `json:"details"`
	Met     bool   `json:"met"`
}

// Statistics are job-level matching metrics.
type Statistics struct {
	TotalRequirements     int `json:"total_requirements"`
	HighConfidenceMatches int `json:"high_confidence_matches"`
	LowConfidenceMatches  int `json:"low_confidence_matches"`
	FallbackJudgments     int `json:"fallback_judgments"`
}

// Document is the format-agnostic report object handed to external
// renderers.
type Document struct {
	ReportID       string               `json:"report_id"`
	RFPName        string               `json:"rfp_name"`
	GeneratedAt    time.Time            `json:"generated_at"`
	Eligible       bool                 `json:"eligible"`
	Summary        string               `json:"summary"`
	Scores         Scores               `json:"scores"`
	Requirements   []RequirementFinding `json:"requirements"`
	Risks          []string             `json:"risks"`
	Checklist      []string             `json:"checklist"`
	Qualifications []Qualification      `json:"qualifications"`
	Statistics     Statistics           `json:"statistics"`
}

const highConfidenceCutoff = 0.8

// qualificationPatterns maps requirement categories to the keywords that
// identify them in requirement text.
var qualificationPatterns = []struct {
	category string
	keywords []string
}{
	{"Certification", []string{"certif", "license", "accredit"}},
	{"Experience", []string{"experience", "year", "background"}},
	{"Technical", []string{"technical", "skill", "proficiency"}},
	{"Education", []string{"degree", "education", "qualification"}},
	{"Compliance", []string{"comply", "standard", "regulation"}},
}

var baseChecklist = []string{
	"Complete all mandatory fields in RFP response template",
	"Attach company credentials and certifications",
	"Include detailed technical approach",
	"Provide project timeline and milestones",
	"Include cost breakdown and pricing details",
	"Attach relevant past performance examples",
	"Include required forms and certifications",
	"Prepare executive summary",
}

// Assembler turns eligibility reports into renderable documents.
type Assembler struct {
	// EligibilityThreshold and MinCoverageThreshold mirror the aggregation
	// policy so risks reference the thresholds that were actually applied.
	thresholds eligibility.Thresholds
}

func NewAssembler(thresholds eligibility.Thresholds) *Assembler {
	return &Assembler{thresholds: thresholds}
}

// Assemble builds the report document. evidence maps a requirement chunk id
// to the excerpts cited by its judgment, in rank order.
func (a *Assembler) Assemble(result *eligibility.Report, rfpName string, evidence map[string][]Excerpt) *Document {
	doc := &Document{
		ReportID:    fmt.Sprintf("rfp_analysis_%s", result.GeneratedAt.Format("20060102_150405")),
		RFPName:     rfpName,
		GeneratedAt: result.GeneratedAt,
		Eligible:    result.Eligible,
		Scores: Scores{
			OverallScore:        round1(50 * (result.TechnicalMatchScore + result.Coverage)),
			TechnicalMatch:      round1(100 * result.TechnicalMatchScore),
			RequirementCoverage: round1(100 * result.Coverage),
		},
	}

	for _, judgment := range result.Judgments {
		doc.Requirements = append(doc.Requirements, RequirementFinding{
			RequirementChunkID: judgment.RequirementChunkID,
			Requirement:        judgment.RequirementText,
			Verdict:            string(judgment.Verdict),
			Confidence:         judgment.Confidence,
			Rationale:          judgment.Rationale,
			Source:             string(judgment.Source),
			Evidence:           evidence[judgment.RequirementChunkID],
		})
	}

	doc.Statistics = buildStatistics(result.Judgments)
	doc.Risks = a.analyzeRisks(result, doc.Statistics)
	doc.Checklist = buildChecklist(result, doc.Statistics)
	doc.Qualifications = extractQualifications(result.Judgments)
	doc.Summary = buildSummary(doc)

	return doc
}

func buildStatistics(judgments []*alignment.Judgment) Statistics {
	stats := Statistics{TotalRequirements: len(judgments)}
	for _, judgment := range judgments {
		if judgment.Confidence >= highConfidenceCutoff && judgment.Verdict == alignment.VerdictAligned {
			stats.HighConfidenceMatches++
		} else if judgment.Verdict != alignment.VerdictNotAligned {
			stats.LowConfidenceMatches++
		}
		if judgment.Source == alignment.SourceFallbackSimilarity {
			stats.FallbackJudgments++
		}
	}

	return stats
}

func (a *Assembler) analyzeRisks(result *eligibility.Report, stats Statistics) []string {
	var risks []string

	if result.TechnicalMatchScore < a.thresholds.EligibilityThreshold {
		risks = append(risks, fmt.Sprintf(
			"High Risk: technical match score %.0f%% below minimum threshold (%.0f%%)",
			100*result.TechnicalMatchScore, 100*a.thresholds.EligibilityThreshold))
	}

	if result.Coverage < a.thresholds.MinCoverageThreshold {
		risks = append(risks, fmt.Sprintf(
			"High Risk: only %.0f%% of requirements covered (minimum %.0f%%)",
			100*result.Coverage, 100*a.thresholds.MinCoverageThreshold))
	}

	if stats.TotalRequirements > 0 &&
		float64(stats.HighConfidenceMatches)/float64(stats.TotalRequirements) < 0.6 {
		risks = append(risks, "Medium Risk: low number of high-confidence requirement matches")
	}

	if stats.FallbackJudgments > 0 {
		risks = append(risks, fmt.Sprintf(
			"Note: %d of %d requirements were scored by similarity only (LLM unavailable)",
			stats.FallbackJudgments, stats.TotalRequirements))
	}

	return risks
}

func buildChecklist(result *eligibility.Report, stats Statistics) []string {
	checklist := make([]string, 0, len(baseChecklist)+2)
	checklist = append(checklist, baseChecklist...)

	if stats.HighConfidenceMatches == 0 {
		checklist = append(checklist, "Strengthen technical capabilities documentation")
	}
	if result.Coverage < 0.5 {
		checklist = append(checklist, "Address gaps in requirements coverage")
	}

	return checklist
}

func extractQualifications(judgments []*alignment.Judgment) []Qualification {
	var qualifications []Qualification
	for _, judgment := range judgments {
		text := strings.ToLower(judgment.RequirementText)
		for _, pattern := range qualificationPatterns {
			if !containsAny(text, pattern.keywords) {
				continue
			}
			qualifications = append(qualifications, Qualification{
				Type:    pattern.category,
				Details: judgment.RequirementText,
				Met:     judgment.Verdict == alignment.VerdictAligned,
			})
			break
		}
	}

	return qualifications
}

func buildSummary(doc *Document) string {
	verdict := "does not qualify"
	if doc.Eligible {
		verdict = "qualifies"
	}

	return fmt.Sprintf(
		"Vendor %s for %q: technical match %.0f%%, requirement coverage %.0f%% across %d requirements (%d high-confidence matches).",
		verdict, doc.RFPName, doc.Scores.TechnicalMatch, doc.Scores.RequirementCoverage,
		doc.Statistics.TotalRequirements, doc.Statistics.HighConfidenceMatches,
	)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
