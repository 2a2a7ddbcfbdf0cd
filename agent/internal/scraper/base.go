package scraper

import (
	"context"
	"time"
)

// StatusQuerier returns the raw text printed by the node's status command.
type StatusQuerier interface {
	Query(ctx context.Context, name string) (string, error)
}

// LogTailer returns the node's log lines emitted within the trailing window.
type LogTailer interface {
	TailLogs(ctx context.Context, name string, window time.Duration) ([]string, error)
}

// Stage names used in log records and scrape error reports.
const (
	StageStatus = "status"
	StageLogs   = "logs"
)
