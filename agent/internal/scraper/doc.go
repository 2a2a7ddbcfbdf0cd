// Package scraper extracts node telemetry from the two text sources the
// container exposes.
//
// StatusFetcher runs the node's status command (through a StatusQuerier) and
// parses the human-readable "Label: value" lines into a NodeIdentity and a
// StatusSnapshot. Missing numeric fields default to 0 and a missing peer id
// becomes "unknown".
//
// LogScanner reads a trailing window of container logs (through a LogTailer)
// and picks the first "peers in store" and the first "completed duration
// proof" line that carry both of their embedded JSON fields. Fields that were
// not found stay nil and are never published.
//
// Both sources are described by declarative tables (statusFields, logRules)
// so each field's pattern and missing-value policy lives in one place.
package scraper
