package redact

import (
	"math/big"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

type rule struct {
	name string
	re   *regexp.Regexp
	// valid filters regex matches; nil accepts every match
	valid func(match string) bool
}

// secretRules are regex heuristics for credentials pasted into contract text
// (escrow schedules, API access annexes, onboarding appendices).
var secretRules = []rule{
	{name: "api_key", re: regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{name: "aws_access_key", re: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{name: "aws_secret_key", re: regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{name: "password", re: regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{name: "bearer", re: regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{name: "jwt", re: regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{name: "private_key", re: regexp.MustCompile(`-----BEGIN\s+(RSA\s+)?PRIVATE KEY-----`)},
	{name: "openai_key", re: regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`)},
}

// financialRules cover account identifiers that commonly appear in payment
// and banking clauses.
var financialRules = []rule{
	{name: "iban", re: regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`), valid: validIBAN},
	{name: "card_number", re: regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`), valid: luhn},
	{name: "us_ssn", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
}

// Secrets replaces detected credentials in text with [REDACTED].
func Secrets(text string) string {
	out, _ := apply(text, secretRules)
	return out
}

// Text redacts credentials and financial identifiers. It returns the redacted
// text and the number of replacements made.
func Text(text string) (string, int) {
	out, n1 := apply(text, secretRules)
	out, n2 := apply(out, financialRules)
	return out, n1 + n2
}

func apply(text string, rules []rule) (string, int) {
	count := 0
	for _, r := range rules {
		text = r.re.ReplaceAllStringFunc(text, func(match string) string {
			if r.valid != nil && !r.valid(match) {
				return match
			}
			count++
			return placeholder
		})
	}
	return text, count
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhn validates a card-number candidate.
func luhn(match string) bool {
	digits := digitsOnly(match)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// validIBAN applies the ISO 13616 mod-97 check.
func validIBAN(match string) bool {
	iban := strings.ReplaceAll(match, " ", "")
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var num strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			num.WriteString(big.NewInt(int64(r-'A') + 10).String())
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(num.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
