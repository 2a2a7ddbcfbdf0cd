package exporter

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/quilmon/quilmon/agent/internal/metrics"
	"github.com/quilmon/quilmon/agent/internal/scraper"
	"github.com/quilmon/quilmon/pkg/types"
)

// Stage names recorded in Scrape.Errors besides the scraper stages.
const stageGather = "gather"

// Prober reports whether the node container is running.
type Prober interface {
	IsActive(ctx context.Context, name string) bool
}

// Target is everything the pipeline needs from the container runtime.
// *runtime.Docker satisfies it.
type Target interface {
	Prober
	scraper.StatusQuerier
	scraper.LogTailer
}

// Options selects the node and shapes its labels.
type Options struct {
	// Container is the name filter of the node container.
	Container string

	// Hostname overrides the hostname label. Empty uses os.Hostname.
	Hostname string

	// LogWindow is how far back each scrape reads the logs.
	LogWindow time.Duration
}

// Scrape is the outcome of one pipeline run.
type Scrape struct {
	At       time.Time
	Duration time.Duration
	Target   string
	Active   bool

	// Identity is nil when the node was down or its status unavailable.
	Identity *types.NodeIdentity

	Families []*dto.MetricFamily
	Series   int

	// Errors maps a stage name to the failure it hit this cycle.
	Errors map[string]string
}

type pipeline struct {
	container string
	probe     Prober
	status    *scraper.StatusFetcher
	logs      *scraper.LogScanner
}

// Exporter scrapes one node container per request.
//
// All exported methods are safe for concurrent use.
type Exporter struct {
	pipe atomic.Pointer[pipeline]
	last atomic.Pointer[Scrape]
	mux  *http.ServeMux
	now  func() time.Time // injectable for deterministic tests
}

// New returns an Exporter scraping target with opts and registers its routes.
func New(target Target, opts Options) *Exporter {
	e := &Exporter{mux: http.NewServeMux(), now: time.Now}
	e.Reconfigure(target, opts)

	e.mux.HandleFunc("/metrics", e.metrics)
	e.mux.HandleFunc("/api/v1/status", e.status)
	e.mux.HandleFunc("/healthz", e.healthz)
	return e
}

// Reconfigure replaces the target and options used by subsequent scrapes.
// Scrapes already running finish with the previous pipeline.
func (e *Exporter) Reconfigure(target Target, opts Options) {
	e.pipe.Store(&pipeline{
		container: opts.Container,
		probe:     target,
		status:    scraper.NewStatusFetcher(target, opts.Hostname),
		logs:      scraper.NewLogScanner(target, opts.LogWindow),
	})
}

// Last returns the most recently started scrape that has completed, or nil
// before the first.
func (e *Exporter) Last() *Scrape {
	return e.last.Load()
}

// Scrape runs the pipeline once into a fresh metric set and publishes the
// result as Last.
func (e *Exporter) Scrape(ctx context.Context) *Scrape {
	p := e.pipe.Load()
	start := e.now()
	sc := &Scrape{At: start, Target: p.container, Errors: map[string]string{}}
	set := metrics.NewSet()

	e.run(ctx, p, sc, set)

	mfs, err := set.Gather()
	if err != nil {
		slog.Error("exporter: gather failed", "stage", stageGather, "err", err)
		sc.Errors[stageGather] = err.Error()
	}
	sc.Families = mfs
	sc.Series = set.Len()
	sc.Duration = e.now().Sub(start)

	e.publish(sc)
	slog.Debug("exporter: scrape finished",
		"container", sc.Target,
		"active", sc.Active,
		"series", sc.Series,
		"duration", sc.Duration,
	)
	return sc
}

// publish makes sc the last scrape unless a scrape that started later has
// already finished.
func (e *Exporter) publish(sc *Scrape) {
	for {
		cur := e.last.Load()
		if cur != nil && cur.At.After(sc.At) {
			return
		}
		if e.last.CompareAndSwap(cur, sc) {
			return
		}
	}
}

func (e *Exporter) run(ctx context.Context, p *pipeline, sc *Scrape, set *metrics.Set) {
	if !p.probe.IsActive(ctx, p.container) {
		slog.Debug("exporter: node not running, empty scrape", "container", p.container)
		return
	}
	sc.Active = true

	id, status, err := p.status.Fetch(ctx, p.container)
	if err != nil {
		sc.Errors[scraper.StageStatus] = err.Error()
		return
	}
	sc.Identity = &id
	set.PublishStatus(id, status)

	logs, err := p.logs.Scan(ctx, p.container)
	if err != nil {
		sc.Errors[scraper.StageLogs] = err.Error()
		return
	}
	set.PublishLogs(id, logs)
}
