// Package explain streams plain-language explanations of single clauses.
//
// [Explainer.Explain] opens one streaming completion and returns a [Stream],
// a pull iterator over word-aligned text chunks. Chunks never split a word:
// complete words are emitted with one trailing space and the final partial
// word is held until more text arrives or the stream ends.
package explain
