package output

import (
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/dshills/juris/internal/review"
)

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "markdown"}

// Writer writes a review result in a specific format.
type Writer interface {
	Write(w io.Writer, result *review.Result) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	default:
		return nil, eris.Errorf("unsupported output format: %s", format)
	}
}

// WriteResult writes the result to the specified output (file path or stdout).
func WriteResult(result *review.Result, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return eris.Wrap(err, "creating output file")
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, result)
}
