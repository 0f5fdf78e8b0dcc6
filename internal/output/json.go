package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"

	"github.com/dshills/juris/internal/review"
)

// JSONWriter outputs the full result as JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, result *review.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshaling JSON")
	}
	_, err = w.Write(data)
	if err != nil {
		return eris.Wrap(err, "writing JSON")
	}
	_, err = fmt.Fprintln(w)
	return err
}
