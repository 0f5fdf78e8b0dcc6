// Package prompts holds the system prompt table keyed by contract type.
//
// Each [ContractType] maps to a [Pair] of analysis and explanation prompts.
// Unknown types resolve to the generic default pair. [Load] merges an
// optional YAML override file over the built-in table.
package prompts
