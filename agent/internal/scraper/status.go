package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"

	"github.com/quilmon/quilmon/pkg/types"
)

var peerIDPattern = regexp.MustCompile(`Peer ID: (\S+)`)

// statusField describes one numeric line of the status output. A field whose
// pattern does not match keeps its zero value.
type statusField struct {
	name    string
	pattern *regexp.Regexp
	set     func(*types.StatusSnapshot, float64)
}

var statusFields = []statusField{
	{
		name:    "peer_score",
		pattern: regexp.MustCompile(`Peer Score: (\d+)`),
		set:     func(s *types.StatusSnapshot, v float64) { s.PeerScore = v },
	},
	{
		name:    "max_frame",
		pattern: regexp.MustCompile(`Max Frame: (\d+)`),
		set:     func(s *types.StatusSnapshot, v float64) { s.MaxFrame = v },
	},
	{
		name:    "unclaimed_balance",
		pattern: regexp.MustCompile(`Unclaimed balance: ([\d.]+)`),
		set:     func(s *types.StatusSnapshot, v float64) { s.UnclaimedBalance = v },
	},
}

// StatusFetcher queries the node status command and parses its output.
type StatusFetcher struct {
	querier  StatusQuerier
	hostname func() (string, error)
}

// NewStatusFetcher returns a fetcher backed by q. A non-empty hostname
// overrides the local host name used as the "hostname" label.
func NewStatusFetcher(q StatusQuerier, hostname string) *StatusFetcher {
	f := &StatusFetcher{querier: q, hostname: os.Hostname}
	if hostname != "" {
		f.hostname = func() (string, error) { return hostname, nil }
	}
	return f
}

// Fetch runs the status command for container name. Any error means the
// status is unavailable: neither identity nor snapshot should be used.
func (f *StatusFetcher) Fetch(ctx context.Context, name string) (types.NodeIdentity, types.StatusSnapshot, error) {
	out, err := f.querier.Query(ctx, name)
	if err != nil {
		err = fmt.Errorf("scraper: query status: %w", err)
		slog.Error("scraper: status fetch failed", "stage", StageStatus, "container", name, "err", err)
		return types.NodeIdentity{}, types.StatusSnapshot{}, err
	}

	peerID, snap, err := parseStatus(out)
	if err != nil {
		slog.Error("scraper: status parse failed", "stage", StageStatus, "container", name, "err", err)
		return types.NodeIdentity{}, types.StatusSnapshot{}, err
	}

	host, err := f.hostname()
	if err != nil || host == "" {
		slog.Warn("scraper: hostname lookup failed", "err", err)
		host = "unknown"
	}

	return types.NodeIdentity{PeerID: peerID, Hostname: host}, snap, nil
}

// parseStatus extracts the peer id and numeric fields from status output.
func parseStatus(out string) (string, types.StatusSnapshot, error) {
	var snap types.StatusSnapshot

	peerID := types.UnknownPeerID
	if m := peerIDPattern.FindStringSubmatch(out); m != nil {
		peerID = m[1]
	}

	for _, f := range statusFields {
		m := f.pattern.FindStringSubmatch(out)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return "", types.StatusSnapshot{}, fmt.Errorf("scraper: parse %s %q: %w", f.name, m[1], err)
		}
		f.set(&snap, v)
	}
	return peerID, snap, nil
}
