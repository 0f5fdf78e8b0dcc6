package review

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/juris/internal/prompts"
)

// ChecklistFailed is returned in place of a checklist when generation fails.
// Callers must treat it as a sentinel, not as checklist content.
const ChecklistFailed = "Checklist generation failed."

// Clause is one unit of contract text with a key unique within its contract.
type Clause struct {
	Key      string `json:"key"`
	Content  string `json:"content"`
	Location string `json:"location,omitempty"`
}

// Contract is the ordered clause list submitted for review.
type Contract struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title,omitempty"`
	Pages   int      `json:"pages,omitempty"`
	Clauses []Clause `json:"clauses"`
}

// Risk levels assigned by the model.
const (
	RiskNone   = 0
	RiskLow    = 1
	RiskMedium = 2
	RiskHigh   = 3
)

// RiskLevelName returns a display name for a risk level.
func RiskLevelName(level int) string {
	switch level {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return strconv.Itoa(level)
	}
}

// ParseRiskLevel accepts none/low/medium/high or a digit 0-3.
func ParseRiskLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "0":
		return RiskNone, nil
	case "low", "1":
		return RiskLow, nil
	case "medium", "2":
		return RiskMedium, nil
	case "high", "3":
		return RiskHigh, nil
	default:
		return 0, fmt.Errorf("invalid risk level %q (want none, low, medium, high or 0-3)", s)
	}
}

// MeetsThreshold reports whether level is at or above threshold. A threshold
// of RiskNone never matches.
func MeetsThreshold(level, threshold int) bool {
	if threshold <= RiskNone {
		return false
	}
	return level >= threshold
}

// RiskyClause is a clause flagged by the model. Content always comes from
// the submitted clause, never from the model output.
type RiskyClause struct {
	Key             string `json:"key"`
	Content         string `json:"content"`
	RiskType        string `json:"risk_type"`
	RiskLevel       int    `json:"risk_level"`
	RiskFactor      string `json:"risk_factor"`
	Title           string `json:"title"`
	Concerns        string `json:"concerns"`
	Recommendations string `json:"recommendations"`
}

// Analytics summarizes one review run.
type Analytics struct {
	// TokensUsed is not measured and is always 0.
	TokensUsed          int     `json:"tokens_used"`
	TotalTimeTaken      float64 `json:"total_time_taken"`
	TotalClauses        int     `json:"total_clauses"`
	RiskyClauses        int     `json:"risky_clauses"`
	TotalBatches        int     `json:"total_batches"`
	RateLimitHits       int     `json:"rate_limit_hits"`
	AverageTimePerBatch float64 `json:"average_time_per_batch"`
	SuccessRate         float64 `json:"success_rate"`
}

// LevelCounts holds finding counts by risk level.
type LevelCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Summary provides an overview of findings.
type Summary struct {
	Counts       LevelCounts `json:"counts"`
	HighestLevel int         `json:"highest_level"`
}

// Result is the outcome of one Analyze call.
type Result struct {
	ID            string               `json:"id"`
	ContractID    string               `json:"contract_id,omitempty"`
	ContractTitle string               `json:"contract_title,omitempty"`
	ContractType  prompts.ContractType `json:"contract_type"`
	Pages         int                  `json:"pages,omitempty"`
	Findings      []RiskyClause        `json:"findings"`
	Checklist     string               `json:"checklist"`
	Summary       Summary              `json:"summary"`
	Analytics     Analytics            `json:"analytics"`
	CreatedAt     time.Time            `json:"created_at"`
}

// ChecklistOK reports whether the checklist is real content.
func (r *Result) ChecklistOK() bool {
	return r.Checklist != "" && r.Checklist != ChecklistFailed
}

// ComputeSummary calculates the summary from findings.
func ComputeSummary(findings []RiskyClause) Summary {
	var s Summary
	for _, f := range findings {
		switch f.RiskLevel {
		case RiskLow:
			s.Counts.Low++
		case RiskMedium:
			s.Counts.Medium++
		case RiskHigh:
			s.Counts.High++
		}
		if f.RiskLevel > s.HighestLevel {
			s.HighestLevel = f.RiskLevel
		}
	}
	return s
}
