// Package cache provides a file-based cache for batch analysis responses.
//
// Entries are keyed by a SHA-256 hash of the model and both prompts, so a
// cached response is only reused for a byte-identical request. Each entry
// stores the raw completion with a creation timestamp; entries older than the
// TTL are treated as misses and removed.
//
// The default cache directory is $XDG_CACHE_HOME/juris (or the OS-appropriate
// equivalent). Prompts are redacted before they reach the key.
package cache
