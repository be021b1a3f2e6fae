// Package server exposes the placeholder engine over HTTP.
//
// Routes:
//
//	POST /v1/parse     text → segments, placeholders and document JSON
//	POST /v1/render    document JSON → text
//	POST /v1/validate  text and variable scope → issues
//	POST /v1/events    publish a broadcast event (when a channel is set)
//	GET  /metrics      Prometheus metrics
//	GET  /healthz      liveness
package server
