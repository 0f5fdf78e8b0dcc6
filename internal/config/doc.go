// Package config loads and merges juris configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags, passed to [Load] as dotted overrides ("review.batchSize")
//  2. Environment variables (JURIS_REVIEW_BATCHSIZE, OPENAI_API_KEY, ...),
//     including any found in a .env file
//  3. Config file ($XDG_CONFIG_HOME/juris/config.json)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write a config file, and
// [SetField] to update a single key.
package config
