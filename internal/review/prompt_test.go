package review

import (
	"strings"
	"testing"
)

func TestBuildBatchPrompt(t *testing.T) {
	prompt := BuildBatchPrompt([]Clause{
		{Key: "clause-1", Content: "The Supplier shall deliver the Goods."},
		{Key: "clause-2", Content: "Payment is due within 90 days."},
	})

	if !strings.HasPrefix(prompt, "Analyze the following contract clauses:\n\n") {
		t.Errorf("unexpected prefix: %q", prompt[:40])
	}
	want := "Clause 1 (Key: clause-1):\nThe Supplier shall deliver the Goods.\n\nClause 2 (Key: clause-2):\nPayment is due within 90 days.\n"
	if !strings.Contains(prompt, want) {
		t.Errorf("prompt missing clause listing:\n%s", prompt)
	}
	for _, field := range requiredFields {
		if !strings.Contains(prompt, `"`+field+`"`) {
			t.Errorf("prompt does not describe field %q", field)
		}
	}
	if !strings.Contains(prompt, "strictly as a JSON array") {
		t.Error("prompt should demand a bare JSON array")
	}
}

func TestBuildChecklistPrompt(t *testing.T) {
	base := BuildChecklistPrompt(nil)
	if !strings.Contains(base, "# Checklist Items") {
		t.Error("checklist prompt missing item list")
	}
	if strings.Contains(base, "Identified risky clauses") {
		t.Error("no findings should mean no risky clause section")
	}

	withFindings := BuildChecklistPrompt([]RiskyClause{
		{Key: "clause-4", Title: "Unlimited indemnity", RiskLevel: 3},
	})
	if !strings.Contains(withFindings, "- Unlimited indemnity (clause-4, risk level 3)") {
		t.Errorf("findings not listed:\n%s", withFindings)
	}
}
