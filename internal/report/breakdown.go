package report

import "strconv"

// BreakdownByVerdict groups requirement findings by verdict for quick
// console reporting.
func (d *Document) BreakdownByVerdict() map[string][]map[string]string {
	breakdown := make(map[string][]map[string]string)
	for _, finding := range d.Requirements {
		entry := map[string]string{
			"requirement": finding.Requirement,
			"confidence":  strconv.FormatFloat(finding.Confidence, 'f', 2, 64),
			"source":      finding.Source,
		}
		if finding.Rationale != "" {
			entry["rationale"] = finding.Rationale
		}

		breakdown[finding.Verdict] = append(breakdown[finding.Verdict], entry)
	}

	return breakdown
}
