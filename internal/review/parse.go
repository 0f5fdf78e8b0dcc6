package review

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/logging"
)

// ErrMalformedResponse marks model output that could not be turned into findings.
var ErrMalformedResponse = eris.New("malformed model response")

var requiredFields = []string{
	"clause_key",
	"risk_level",
	"risk_type",
	"risk_factor",
	"title",
	"concerns",
	"recommendations",
}

var (
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
	adjacentObjs  = regexp.MustCompile(`\}\s*\{`)
)

// Parser turns raw model output into findings.
type Parser struct {
	// Threshold is the minimum risk level kept.
	Threshold int
	Logger    *zap.Logger
}

// Parse validates, repairs and decodes raw into findings at or above the
// threshold. Finding content is resolved through keyToContent. Elements with
// missing fields are skipped. When the output as a whole is unusable Parse
// returns no findings and an error wrapping ErrMalformedResponse.
func (p Parser) Parse(raw string, keyToContent map[string]string) ([]RiskyClause, error) {
	log := logging.OrGlobal(p.Logger)

	array, err := shape(raw)
	if err != nil {
		log.Error("unusable model output", zap.Error(err), zap.String("content", clip(strings.TrimSpace(raw))))
		return nil, err
	}
	array = repairJSON(array)

	var top any
	if err := json.Unmarshal([]byte(array), &top); err != nil {
		log.Error("JSON parsing error", zap.Error(err), zap.String("content", clip(array)))
		return nil, eris.Wrapf(ErrMalformedResponse, "decoding findings: %v", err)
	}
	elems, isArray := top.([]any)
	if !isArray {
		log.Error("expected a list of clauses", zap.String("content", clip(array)))
		return nil, eris.Wrap(ErrMalformedResponse, "top-level value is not an array")
	}

	findings := make([]RiskyClause, 0, len(elems))
	for i, elem := range elems {
		obj, isObj := elem.(map[string]any)
		if !isObj {
			log.Warn("skipping non-object element", zap.Int("index", i))
			continue
		}
		if missing := missingFields(obj); len(missing) > 0 {
			log.Warn("missing fields in clause data",
				zap.Any("clause_key", obj["clause_key"]),
				zap.Strings("missing", missing))
			continue
		}

		key := stringValue(obj["clause_key"])
		level, ok := intValue(obj["risk_level"])
		if !ok {
			log.Warn("invalid risk_level",
				zap.String("clause_key", key),
				zap.Any("risk_level", obj["risk_level"]))
			continue
		}
		if level < p.Threshold {
			continue
		}

		findings = append(findings, RiskyClause{
			Key:             key,
			Content:         keyToContent[key],
			RiskLevel:       level,
			RiskType:        stringValue(obj["risk_type"]),
			RiskFactor:      stringValue(obj["risk_factor"]),
			Title:           stringValue(obj["title"]),
			Concerns:        stringValue(obj["concerns"]),
			Recommendations: stringValue(obj["recommendations"]),
		})
	}
	return findings, nil
}

// CheckShape reports whether raw could hold findings at all: it must look like
// JSON and contain an array. Output failing this is worth asking for again;
// output that passes but does not decode is not.
func CheckShape(raw string) error {
	_, err := shape(raw)
	return err
}

func shape(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if !looksLikeJSON(content) {
		return "", eris.Wrap(ErrMalformedResponse, "content does not look like JSON")
	}
	array, ok := extractArray(content)
	if !ok {
		return "", eris.Wrap(ErrMalformedResponse, "no JSON array in content")
	}
	return array, nil
}

// looksLikeJSON is a cheap gate: content must be bracketed by [] or {}.
func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return false
	}
	return (s[0] == '[' && s[len(s)-1] == ']') || (s[0] == '{' && s[len(s)-1] == '}')
}

// extractArray returns the text from the first '[' through the last ']'.
func extractArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// repairJSON fixes trailing commas and missing commas between objects.
func repairJSON(s string) string {
	s = trailingComma.ReplaceAllString(s, "$1")
	s = adjacentObjs.ReplaceAllString(s, "},{")
	if !strings.HasPrefix(s, "[") {
		s = "[" + s + "]"
	}
	return s
}

func missingFields(obj map[string]any) []string {
	var missing []string
	for _, f := range requiredFields {
		if _, ok := obj[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// intValue accepts integral numbers and numeric strings.
func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		// fractional levels truncate toward zero
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func clip(s string) string {
	const limit = 2000
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
