// Package types defines the scrape-scoped values passed between the status
// fetcher, the log window scanner and the metric set. None of them outlive a
// single scrape.
package types
