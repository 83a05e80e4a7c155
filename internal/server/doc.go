// Package server exposes the review engine over HTTP.
//
// Routes live under /api and answer with a JSON Envelope:
//
//	GET  /api/personas       persona roster
//	GET  /api/models         models of the configured (or ?provider=) backend
//	POST /api/review         run a review, returns a review.Report
//	POST /api/review/stream  same, as NDJSON delta events then a report event
//	POST /api/merge          locate and merge caller-supplied annotations
//	POST /api/retry          re-run one persona of an existing report
//
// GET /healthz answers "." for liveness probes.
package server
