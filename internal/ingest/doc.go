// Package ingest turns contract documents into clause lists.
//
// HTML documents have every non-empty list item marked as a clause; plain
// text is split into paragraphs; JSON files are read as a contract directly.
package ingest
