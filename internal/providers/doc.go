// Package providers implements the client for an OpenAI-compatible
// chat-completions endpoint.
//
// [Client.Call] performs one completion with two nested retry layers. The
// outer layer classifies every attempt as ok, retryable or fatal and retries
// with a linear delay; HTTP 429 responses increment a shared
// [RateLimitCounter] and honor Retry-After. The inner layer wraps only the
// raw round trip and retries transport errors with jittered exponential
// back-off.
//
// [Client.OpenStream] starts a streaming completion; it never retries.
//
// HTTP clients are injectable so that tests can redirect calls to local
// httptest servers without making live API requests.
package providers
