// Package redact removes sensitive values from clause text before it is sent
// to the completion endpoint.
//
// Detection uses regex heuristics. [Secrets] covers credential shapes (API
// keys, JWTs, private keys, AWS keys, bearer tokens). [Text] additionally
// covers financial identifiers: IBANs (mod-97 checked), payment card numbers
// (Luhn checked) and US social security numbers.
package redact
