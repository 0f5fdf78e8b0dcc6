// Package cli wires together the Cobra command tree for the juris binary.
//
// It defines the root command and all subcommands (analyze, explain, serve,
// history, config, cache, types, doctor, version), binds flags, reads
// configuration, invokes the review engine, and returns deterministic exit
// codes for CI gating.
package cli
