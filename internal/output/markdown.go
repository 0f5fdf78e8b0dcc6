package output

import (
	"io"
	"strings"

	"github.com/dshills/juris/internal/review"
)

// MarkdownWriter outputs a markdown report suitable for sharing with reviewers.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, result *review.Result) error {
	ew := &errWriter{w: w}
	counts := result.Summary.Counts
	total := counts.High + counts.Medium + counts.Low

	title := result.ContractTitle
	if title == "" {
		title = "Contract"
	}
	ew.printf("## %s Review\n\n", title)
	ew.printf("Contract type: `%s`", result.ContractType)
	if result.Pages > 0 {
		ew.printf(" | Pages: %d", result.Pages)
	}
	ew.printf(" | Clauses: %d\n\n", result.Analytics.TotalClauses)

	ew.printf("| Risk | Count |\n")
	ew.printf("|------|-------|\n")
	ew.printf("| High     | %d    |\n", counts.High)
	ew.printf("| Medium   | %d    |\n", counts.Medium)
	ew.printf("| Low      | %d    |\n", counts.Low)
	ew.printf("| **Total** | **%d** |\n\n", total)

	if total == 0 {
		ew.println("No risky clauses found. :white_check_mark:\n")
	}

	grouped := groupByLevel(result.Findings)
	for _, level := range []int{review.RiskHigh, review.RiskMedium, review.RiskLow} {
		findings := grouped[level]
		if len(findings) == 0 {
			continue
		}

		label := strings.ToUpper(review.RiskLevelName(level))
		ew.printf("<details>\n<summary>%s %s (%d)</summary>\n\n", mdLevelIcon(level), label, len(findings))

		for _, f := range findings {
			ew.printf("### %s\n\n", f.Title)
			ew.printf("**`%s`** | %s | %s\n\n", f.Key, f.RiskType, f.RiskFactor)
			ew.printf("> %s\n\n", strings.ReplaceAll(f.Content, "\n", "\n> "))
			if f.Concerns != "" {
				ew.printf("%s\n\n", f.Concerns)
			}
			if f.Recommendations != "" {
				ew.printf("**Recommendation:** %s\n\n", f.Recommendations)
			}
			ew.printf("---\n\n")
		}

		ew.printf("</details>\n\n")
	}

	ew.printf("### Checklist\n\n")
	if result.ChecklistOK() {
		ew.printf("%s\n\n", result.Checklist)
	} else {
		ew.printf("_Checklist generation failed._\n\n")
	}

	a := result.Analytics
	ew.printf("*Reviewed in %.1fs across %d batches (%.0f%% success, %d rate limit hits)*\n",
		a.TotalTimeTaken, a.TotalBatches, a.SuccessRate, a.RateLimitHits)

	return ew.err
}

func mdLevelIcon(level int) string {
	switch level {
	case review.RiskHigh:
		return ":red_circle:"
	case review.RiskMedium:
		return ":orange_circle:"
	case review.RiskLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

// Compile-time interface checks.
var (
	_ Writer = (*TextWriter)(nil)
	_ Writer = (*JSONWriter)(nil)
	_ Writer = (*MarkdownWriter)(nil)
)
