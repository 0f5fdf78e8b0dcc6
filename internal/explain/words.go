package explain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordBuffer accumulates streamed fragments and releases whole words.
type wordBuffer struct {
	pending string
}

// push appends fragment verbatim and returns every word that is now known to
// be complete, each followed by a single space.
func (w *wordBuffer) push(fragment string) []string {
	// No separator is inserted between fragments, unlike a space-joined buffer,
	// so a word split across fragments ("Hel", "lo") rejoins as one word.
	w.pending += fragment
	fields := strings.Fields(w.pending)
	if len(fields) == 0 {
		w.pending = ""
		return nil
	}

	last, _ := utf8.DecodeLastRuneInString(w.pending)
	if unicode.IsSpace(last) {
		w.pending = ""
	} else {
		w.pending = fields[len(fields)-1]
		fields = fields[:len(fields)-1]
	}

	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f + " "
	}
	return out
}

// flush returns whatever partial word is left.
func (w *wordBuffer) flush() string {
	rest := w.pending
	w.pending = ""
	return rest
}
