package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/dshills/juris/internal/review"
)

// ErrUnsupportedFormat is returned for files LoadContract cannot read.
var ErrUnsupportedFormat = eris.New("unsupported contract format")

// ErrNoClauses is returned when a document yields no clauses.
var ErrNoClauses = eris.New("no clauses found")

var blankLine = regexp.MustCompile(`\n\s*\n`)

const paragraphLocation = "paragraph"

// LoadContract reads a contract from path. Supported formats are .json (a
// contract object), .html/.htm (list items become clauses) and .txt (blank
// line separated paragraphs become clauses).
func LoadContract(path string) (review.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return review.Contract{}, eris.Wrapf(err, "reading contract %s", path)
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	var c review.Contract
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &c); err != nil {
			return review.Contract{}, eris.Wrapf(err, "decoding contract %s", path)
		}
	case ".html", ".htm":
		_, clauses, err := MarkClauses(string(data))
		if err != nil {
			return review.Contract{}, err
		}
		c = review.Contract{Title: Title(string(data)), Clauses: clauses}
	case ".txt", ".md":
		c = review.Contract{Clauses: Paragraphs(string(data))}
	default:
		return review.Contract{}, eris.Wrapf(ErrUnsupportedFormat, "%s", base)
	}

	if len(c.Clauses) == 0 {
		return review.Contract{}, eris.Wrapf(ErrNoClauses, "%s", base)
	}
	if c.ID == "" {
		c.ID = name
	}
	if c.Title == "" {
		c.Title = name
	}
	return c, nil
}

// Paragraphs splits text on blank lines. Each non-empty paragraph becomes a
// clause keyed by its position among non-empty paragraphs.
func Paragraphs(text string) []review.Clause {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var clauses []review.Clause
	for _, p := range blankLine.Split(text, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		clauses = append(clauses, review.Clause{
			Key:      fmt.Sprintf("clause-%d", len(clauses)+1),
			Content:  p,
			Location: paragraphLocation,
		})
	}
	return clauses
}
