package explain

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/logging"
	"github.com/dshills/juris/internal/prompts"
)

// ErrEmptyClause is returned when there is nothing to explain.
var ErrEmptyClause = eris.New("clause text is empty")

// Opener starts a streaming completion and returns the raw event body.
type Opener interface {
	OpenStream(ctx context.Context, systemPrompt, userPrompt string) (io.ReadCloser, error)
}

// Explainer explains clauses using the explanation prompt for a contract type.
type Explainer struct {
	opener  Opener
	prompts *prompts.Catalog
	log     *zap.Logger
}

// New creates an Explainer. A nil catalog selects the built-in prompts.
func New(opener Opener, catalog *prompts.Catalog, log *zap.Logger) *Explainer {
	if catalog == nil {
		catalog = prompts.Default()
	}
	return &Explainer{
		opener:  opener,
		prompts: catalog,
		log:     logging.OrGlobal(log).Named("explain"),
	}
}

// BuildExplainPrompt constructs the user prompt for one clause.
func BuildExplainPrompt(clause string) string {
	return "Please provide a straightforward explanation of the following clause:\n\nClause: " + clause
}

// Explain opens a stream explaining clause. Failing to open the stream,
// including a non-200 response, is returned here; errors after that surface
// through Stream.Err.
func (e *Explainer) Explain(ctx context.Context, clause string, ct prompts.ContractType) (*Stream, error) {
	if strings.TrimSpace(clause) == "" {
		return nil, ErrEmptyClause
	}
	body, err := e.opener.OpenStream(ctx, e.prompts.Explanation(ct), BuildExplainPrompt(clause))
	if err != nil {
		return nil, eris.Wrap(err, "opening explanation stream")
	}
	e.log.Debug("explanation stream opened", zap.String("contract_type", string(ct)))
	return newStream(body, e.log), nil
}
