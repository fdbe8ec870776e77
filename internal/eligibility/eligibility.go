// Package eligibility combines per-requirement alignment judgments into the
// overall technical match score, coverage and the eligibility verdict.
package eligibility

import (
	"time"

	"github.com/bidworks/rfp-qualifier/internal/alignment"
)

// Thresholds are the externally supplied policy values for the eligibility
// flag. They are configuration, never constants, so policy can change
// without touching the aggregator.
type Thresholds struct {
	// EligibilityThreshold is the minimum technical match score (0-1).
	EligibilityThreshold float64
	// MinCoverageThreshold is the minimum requirement coverage (0-1).
	MinCoverageThreshold float64
}

// Report aggregates all judgments for one (RFP, company profile) pair. It is
// immutable once produced and carries no back-references, so it is safe to
// persist or serialize on its own.
type Report struct {
	JobID string

	// TechnicalMatchScore is the verdict-weighted mean confidence (0-1).
	TechnicalMatchScore float64
	// Coverage is the fraction of requirements with at least partial
	// alignment evidence (0-1).
	Coverage float64
	Eligible bool

	Judgments   []*alignment.Judgment
	GeneratedAt time.Time
}

// Aggregator folds judgments into a Report. Deterministic given its inputs
// and thresholds.
type Aggregator struct {
	thresholds Thresholds
	now        func() time.Time
}

func NewAggregator(thresholds Thresholds) *Aggregator {
	return &Aggregator{thresholds: thresholds, now: time.Now}
}

// Aggregate computes the technical match score, coverage and the eligibility
// flag for the given judgments.
func (a *Aggregator) Aggregate(jobID string, judgments []*alignment.Judgment) *Report {
	report := &Report{
		JobID:       jobID,
		Judgments:   judgments,
		GeneratedAt: a.now().UTC(),
	}

	if len(judgments) == 0 {
		return report
	}

	var weighted float64
	covered := 0
	for _, judgment := range judgments {
		weighted += judgment.Confidence * judgment.Verdict.Weight()
		if judgment.Verdict != alignment.VerdictNotAligned {
			covered++
		}
	}

	report.TechnicalMatchScore = weighted / float64(len(judgments))
	report.Coverage = float64(covered) / float64(len(judgments))
	report.Eligible = report.TechnicalMatchScore >= a.thresholds.EligibilityThreshold &&
		report.Coverage >= a.thresholds.MinCoverageThreshold

	return report
}
