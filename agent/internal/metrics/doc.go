// Package metrics holds the per-scrape metric set.
//
// A Set owns a private prometheus.Registry with the seven quilibrium_*
// gauge vectors, each labeled by peer_id and hostname. A new Set is built for
// every scrape, so nothing from a previous scrape (an old peer id, a stopped
// node) can leak into the next one. Gather returns only vectors that received
// at least one series, and Encode writes them in the text exposition format.
package metrics
