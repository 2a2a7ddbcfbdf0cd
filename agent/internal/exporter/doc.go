// Package exporter runs the scrape pipeline and serves its HTTP endpoints.
//
// Exporter.Scrape sequences, for the configured container:
//
//	probe (IsActive) → status (StatusFetcher) → logs (LogScanner) → metric set
//
// into a metrics.Set built fresh for that call. A stopped container or a
// failed status query ends the pipeline early with an empty set; a failed log
// scan only drops the log-derived gauges. Stage failures are recorded on the
// Scrape and never returned to the HTTP caller.
//
// New(...) returns an http.Handler that serves:
//
//	GET /metrics        — runs a scrape, text exposition format, always 200
//	GET /api/v1/status  — JSON summary of the most recent scrape
//	GET /healthz        — liveness of the exporter itself
//
// Concurrent scrapes share no mutable state: the finished Scrape is published
// with an atomic pointer swap and Reconfigure swaps the pipeline the same way.
package exporter
