package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Log streams accepted by Options.LogStream.
const (
	StreamStderr = "stderr"
	StreamStdout = "stdout"
	StreamBoth   = "both"
)

const defaultTimeout = 10 * time.Second

// Options configures a Docker client.
type Options struct {
	// Bin is the docker binary, a name on PATH or an absolute path.
	Bin string

	// StatusCommand is run inside the container by Query.
	StatusCommand []string

	// LogStream selects which output of `docker logs` TailLogs returns.
	LogStream string

	// Timeout bounds every single docker invocation.
	Timeout time.Duration
}

// Docker drives the docker CLI through a Runner.
type Docker struct {
	runner Runner
	opts   Options
}

// NewDocker returns a Docker client. Zero-valued options fall back to
// "docker", stderr and a 10 second timeout.
func NewDocker(runner Runner, opts Options) *Docker {
	if opts.Bin == "" {
		opts.Bin = "docker"
	}
	if opts.LogStream == "" {
		opts.LogStream = StreamStderr
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Docker{runner: runner, opts: opts}
}

// IsActive reports whether a running container matches name. Every failure
// (docker missing, daemon down, permission denied, timeout) reads as not
// running.
func (d *Docker) IsActive(ctx context.Context, name string) bool {
	res, err := d.run(ctx, "ps", "-q", "-f", "name="+name)
	if err != nil {
		slog.Debug("runtime: probe failed", "container", name, "err", err)
		return false
	}
	if res.ExitCode != 0 {
		slog.Debug("runtime: probe exited non-zero",
			"container", name, "exit_code", res.ExitCode, "stderr", trim(res.Stderr))
		return false
	}
	return trim(res.Stdout) != ""
}

// Query runs the configured status command inside the container and returns
// its standard output. A non-zero exit still returns whatever stdout holds:
// a node that is starting up prints partial status and exits non-zero.
func (d *Docker) Query(ctx context.Context, name string) (string, error) {
	args := append([]string{"exec", name}, d.opts.StatusCommand...)
	res, err := d.run(ctx, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		slog.Warn("runtime: status command exited non-zero",
			"container", name, "exit_code", res.ExitCode, "stderr", trim(res.Stderr))
	}
	return string(res.Stdout), nil
}

// TailLogs returns the container's log lines emitted within the trailing
// window, in the order docker prints them.
func (d *Docker) TailLogs(ctx context.Context, name string, window time.Duration) ([]string, error) {
	res, err := d.run(ctx, "logs", name, "--since="+window.String())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("docker logs %s: %w: code %d: %s",
			name, ErrNonZeroExit, res.ExitCode, trim(res.Stderr))
	}

	switch d.opts.LogStream {
	case StreamStdout:
		return splitLines(res.Stdout), nil
	case StreamBoth:
		// docker demultiplexes the two streams, so ordering across them is lost.
		return append(splitLines(res.Stdout), splitLines(res.Stderr)...), nil
	default:
		return splitLines(res.Stderr), nil
	}
}

func (d *Docker) run(ctx context.Context, args ...string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	return d.runner.Run(ctx, d.opts.Bin, args...)
}

func splitLines(b []byte) []string {
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func trim(b []byte) string {
	return strings.TrimSpace(string(b))
}
