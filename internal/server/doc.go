// Package server exposes contract review and clause explanation over HTTP.
//
// Routes:
//
//	GET  /health
//	POST /v1/reviews          analyze a contract (optionally persisted)
//	GET  /v1/reviews          list stored reviews
//	GET  /v1/reviews/{id}     fetch a stored review
//	GET  /v1/analytics        totals across stored reviews
//	POST /v1/explain          stream a clause explanation as text/plain
package server
