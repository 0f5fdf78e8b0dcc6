// Package output formats review results for display or machine consumption.
//
// Three formats are supported:
//   - text     human-readable terminal output (default)
//   - json     full structured result
//   - markdown collapsible sections per risk level, for sharing
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// [Writer.Write] with an [io.Writer] and a [*review.Result]. [WriteResult]
// handles destination selection.
package output
