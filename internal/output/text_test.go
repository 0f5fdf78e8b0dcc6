package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dshills/juris/internal/prompts"
	"github.com/dshills/juris/internal/review"
)

func sampleResult() *review.Result {
	findings := []review.RiskyClause{
		{
			Key:             "clause-4",
			Content:         "The Supplier's liability under this Agreement is unlimited.",
			RiskLevel:       review.RiskHigh,
			RiskType:        "Financial",
			RiskFactor:      "Financial",
			Title:           "Unlimited liability",
			Concerns:        "The Supplier is exposed to uncapped damages.",
			Recommendations: "Cap liability at the fees paid in the prior 12 months.",
		},
		{
			Key:        "clause-9",
			Content:    "Notices may be given by email.",
			RiskLevel:  review.RiskLow,
			RiskType:   "Operational",
			RiskFactor: "Operational",
			Title:      "Informal notice",
		},
	}
	return &review.Result{
		ID:            "r-1",
		ContractID:    "c-1",
		ContractTitle: "Master Services Agreement",
		ContractType:  prompts.MasterServiceAgreement,
		Pages:         12,
		Findings:      findings,
		Checklist:     "- **Parties Involved**: Supplier and Customer",
		Summary:       review.ComputeSummary(findings),
		Analytics: review.Analytics{
			TotalTimeTaken:      4.2,
			TotalClauses:        30,
			RiskyClauses:        2,
			TotalBatches:        2,
			RateLimitHits:       1,
			AverageTimePerBatch: 2.1,
			SuccessRate:         100,
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestTextWriter_NoFindings(t *testing.T) {
	result := &review.Result{
		ContractTitle: "NDA",
		ContractType:  prompts.NonDisclosureAgreement,
		Findings:      []review.RiskyClause{},
		Checklist:     "- Parties: A and B",
		Analytics:     review.Analytics{TotalClauses: 8, SuccessRate: 100},
	}

	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, result); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "non_disclosure_agreement") {
		t.Error("Output should mention contract type")
	}
	if !strings.Contains(out, "Risky clauses: 0 of 8") {
		t.Error("Output should show zero risky clauses")
	}
	if !strings.Contains(out, "No risky clauses found") {
		t.Error("Output should say nothing was found")
	}
	if !strings.Contains(out, "- Parties: A and B") {
		t.Error("Output should include the checklist")
	}
}

func TestTextWriter_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, sampleResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "(1 high, 0 medium, 1 low)") {
		t.Error("Output should break down counts by level")
	}
	if !strings.Contains(out, "HIGH RISK") || !strings.Contains(out, "LOW RISK") {
		t.Error("Output should group by risk level")
	}
	if strings.Index(out, "HIGH RISK") > strings.Index(out, "LOW RISK") {
		t.Error("High risk should come before low risk")
	}
	if !strings.Contains(out, "[clause-4]  Unlimited liability") {
		t.Error("Output should show clause key and title")
	}
	if !strings.Contains(out, "Cap liability") {
		t.Error("Output should include the recommendation")
	}
	if !strings.Contains(out, "2 batches") || !strings.Contains(out, "1 rate limit hits") {
		t.Error("Output should include run analytics")
	}
}

func TestTextWriter_ChecklistFailed(t *testing.T) {
	result := sampleResult()
	result.Checklist = review.ChecklistFailed

	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, result); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.Contains(buf.String(), "Checklist unavailable") {
		t.Error("Output should flag the failed checklist")
	}
}

func TestWrapText(t *testing.T) {
	short := "short text"
	lines := wrapText(short, 70)
	if len(lines) != 1 || lines[0] != short {
		t.Errorf("wrapText(%q) = %v", short, lines)
	}

	long := strings.Repeat("word ", 30)
	lines = wrapText(long, 20)
	if len(lines) < 2 {
		t.Errorf("Expected multiple lines, got %d", len(lines))
	}
	for _, line := range lines {
		if len(line) > 20 {
			t.Errorf("Line too long (%d): %q", len(line), line)
		}
	}
}

func TestGetWriter(t *testing.T) {
	for _, format := range append(Formats, "", "md") {
		if _, err := GetWriter(format); err != nil {
			t.Errorf("GetWriter(%q) error: %v", format, err)
		}
	}
	if _, err := GetWriter("sarif"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func documentOrderResult() *review.Result {
	result := sampleResult()
	result.Findings = []review.RiskyClause{
		{Key: "clause-2", RiskLevel: review.RiskMedium, Title: "Auto renewal"},
		{Key: "clause-10", RiskLevel: review.RiskMedium, Title: "Unilateral price change"},
	}
	result.Summary = review.ComputeSummary(result.Findings)
	return result
}

func TestTextWriter_KeepsDocumentOrder(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, documentOrderResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	first, second := strings.Index(out, "[clause-2]"), strings.Index(out, "[clause-10]")
	if first < 0 || second < 0 {
		t.Fatalf("Output missing clause keys:\n%s", out)
	}
	if first > second {
		t.Error("clause-2 should be listed before clause-10")
	}
}
