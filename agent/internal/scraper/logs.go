package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quilmon/quilmon/pkg/types"
)

// DefaultLogWindow is how far back TailLogs reaches on every scrape.
const DefaultLogWindow = 5 * time.Minute

// logRule matches one event shape. A line counts only when it contains
// marker and both value patterns match and parse.
type logRule struct {
	name   string
	marker string
	first  *regexp.Regexp
	second *regexp.Regexp
	apply  func(s *types.LogWindowSnapshot, first, second string) error
}

var logRules = []logRule{
	{
		name:   "peer_store",
		marker: "peers in store",
		first:  regexp.MustCompile(`"peer_store_count":(\d+)`),
		second: regexp.MustCompile(`"network_peer_count":(\d+)`),
		apply: func(s *types.LogWindowSnapshot, first, second string) error {
			store, err := strconv.ParseInt(first, 10, 64)
			if err != nil {
				return err
			}
			network, err := strconv.ParseInt(second, 10, 64)
			if err != nil {
				return err
			}
			s.PeerStoreCount, s.NetworkPeerCount = &store, &network
			return nil
		},
	},
	{
		name:   "proof",
		marker: "completed duration proof",
		first:  regexp.MustCompile(`"increment":(\d+)`),
		second: regexp.MustCompile(`"time_taken":([\d.]+)`),
		apply: func(s *types.LogWindowSnapshot, first, second string) error {
			increment, err := strconv.ParseInt(first, 10, 64)
			if err != nil {
				return err
			}
			taken, err := strconv.ParseFloat(second, 64)
			if err != nil {
				return err
			}
			s.ProofIncrement, s.ProofTimeTaken = &increment, &taken
			return nil
		},
	},
}

// LogScanner reads the node's recent logs and extracts event values.
type LogScanner struct {
	tailer LogTailer
	window time.Duration
}

// NewLogScanner returns a scanner over the trailing window of t's logs.
// A non-positive window falls back to DefaultLogWindow.
func NewLogScanner(t LogTailer, window time.Duration) *LogScanner {
	if window <= 0 {
		window = DefaultLogWindow
	}
	return &LogScanner{tailer: t, window: window}
}

// Scan retrieves the log window for container name and extracts the first
// match of each event. On error the snapshot is empty.
func (s *LogScanner) Scan(ctx context.Context, name string) (types.LogWindowSnapshot, error) {
	lines, err := s.tailer.TailLogs(ctx, name, s.window)
	if err != nil {
		err = fmt.Errorf("scraper: tail logs: %w", err)
		slog.Error("scraper: log scan failed", "stage", StageLogs, "container", name, "err", err)
		return types.LogWindowSnapshot{}, err
	}

	snap := scanLines(lines)
	slog.Debug("scraper: log window scanned",
		"container", name, "lines", len(lines), "complete", snap.Complete())
	return snap, nil
}

// scanLines walks lines in order and keeps the first complete match of each
// rule, stopping early once every rule matched.
func scanLines(lines []string) types.LogWindowSnapshot {
	var snap types.LogWindowSnapshot
	matched := make([]bool, len(logRules))
	remaining := len(logRules)

	for _, line := range lines {
		for i, r := range logRules {
			if matched[i] || !strings.Contains(line, r.marker) {
				continue
			}
			a := r.first.FindStringSubmatch(line)
			b := r.second.FindStringSubmatch(line)
			if a == nil || b == nil {
				continue
			}
			if err := r.apply(&snap, a[1], b[1]); err != nil {
				slog.Debug("scraper: skipping unparsable log line", "event", r.name, "err", err)
				continue
			}
			matched[i] = true
			remaining--
		}
		if remaining == 0 {
			break
		}
	}
	return snap
}
