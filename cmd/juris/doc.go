// Juris is a CLI and HTTP service for reviewing contracts clause by clause
// with a chat-completion model.
//
// It flags risky clauses with a risk level and recommendations, produces a
// review checklist and run analytics, and streams plain-language
// explanations of single clauses.
//
// Usage:
//
//	juris analyze contract.html --type nda       # review a contract
//	juris analyze msa.json --format json --save  # review and store the result
//	juris explain "The supplier shall ..."       # explain one clause
//	juris serve --addr :8080                     # serve the review API
//	juris history list                           # browse stored reviews
package main
