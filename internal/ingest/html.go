package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/dshills/juris/internal/review"
)

const (
	attrIsClause = "data-is-clause"
	attrLocation = "data-location"
	attrClauseID = "data-clause-id"

	sectionLocation = "section"
)

// MarkClauses tags every <li> with non-empty text as a clause and returns the
// marked HTML with the clauses in document order. Keys count every <li>,
// empty ones included, so clause-N always refers to the Nth list item.
func MarkClauses(html string) (string, []review.Clause, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, eris.Wrap(err, "parsing contract html")
	}

	var clauses []review.Clause
	doc.Find("li").Each(func(i int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		key := fmt.Sprintf("clause-%d", i+1)
		s.SetAttr(attrIsClause, "true")
		s.SetAttr(attrLocation, sectionLocation)
		s.SetAttr(attrClauseID, key)
		clauses = append(clauses, review.Clause{Key: key, Content: text, Location: sectionLocation})
	})

	var marked string
	if isFullDocument(html) {
		marked, err = doc.Html()
	} else {
		marked, err = doc.Find("body").Html()
	}
	if err != nil {
		return "", nil, eris.Wrap(err, "rendering marked html")
	}
	return marked, clauses, nil
}

// Title returns the document <title>, or the first <h1>.
func Title(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.Join(strings.Fields(doc.Find("h1").First().Text()), " ")
}

func isFullDocument(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body")
}
