package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/juris/internal/review"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, result *review.Result) error {
	ew := &errWriter{w: w}
	counts := result.Summary.Counts
	total := counts.High + counts.Medium + counts.Low

	title := result.ContractTitle
	if title == "" {
		title = result.ContractID
	}
	ew.printf("Contract Review: %s (%s)\n", title, result.ContractType)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Risky clauses: %d of %d", total, result.Analytics.TotalClauses)
	if total > 0 {
		ew.printf(" (%d high, %d medium, %d low)", counts.High, counts.Medium, counts.Low)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if total == 0 {
		ew.println("\nNo risky clauses found.")
	}

	grouped := groupByLevel(result.Findings)
	for _, level := range []int{review.RiskHigh, review.RiskMedium, review.RiskLow} {
		findings := grouped[level]
		if len(findings) == 0 {
			continue
		}

		ew.printf("\n%s %s RISK\n", levelIcon(level), strings.ToUpper(review.RiskLevelName(level)))
		ew.println(strings.Repeat("─", 40))

		for _, f := range findings {
			ew.printf("\n  [%s]  %s\n", f.Key, f.Title)
			ew.printf("  Type: %s | Factor: %s\n", f.RiskType, f.RiskFactor)
			for _, line := range wrapText(f.Content, 70) {
				ew.printf("    > %s\n", line)
			}
			if f.Concerns != "" {
				ew.println("  Concerns:")
				for _, line := range wrapText(f.Concerns, 70) {
					ew.printf("    %s\n", line)
				}
			}
			if f.Recommendations != "" {
				ew.println("  Recommendation:")
				for _, line := range wrapText(f.Recommendations, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	if result.ChecklistOK() {
		ew.println("Checklist")
		ew.println(result.Checklist)
	} else {
		ew.println("Checklist unavailable: generation failed.")
	}

	a := result.Analytics
	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %.1fs (%d batches, %.1fs avg, %.0f%% success, %d rate limit hits)\n",
		a.TotalTimeTaken, a.TotalBatches, a.AverageTimePerBatch, a.SuccessRate, a.RateLimitHits)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

// groupByLevel keeps the input (document) order within each level.
func groupByLevel(findings []review.RiskyClause) map[int][]review.RiskyClause {
	m := make(map[int][]review.RiskyClause)
	for _, f := range findings {
		m[f.RiskLevel] = append(m[f.RiskLevel], f)
	}
	return m
}

func levelIcon(level int) string {
	switch level {
	case review.RiskHigh:
		return "[!!]"
	case review.RiskMedium:
		return "[!]"
	case review.RiskLow:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
