package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/quilmon/quilmon/agent/internal/metrics"
	"github.com/quilmon/quilmon/agent/internal/runtime"
	"github.com/quilmon/quilmon/pkg/types"
)

const (
	statusText = "Peer ID: Qm123\nPeer Score: 42\nMax Frame: 900\nUnclaimed balance: 3.5"
	peersLine  = `2024-07-01T10:00:00Z	info	peers in store	{"peer_store_count":10,"network_peer_count":200}`
	proofLine  = `2024-07-01T10:00:01Z	info	completed duration proof	{"increment":7,"time_taken":1.23}`
)

// fakeTarget stands in for the docker runtime.
type fakeTarget struct {
	mu       sync.Mutex
	active   bool
	status   string
	statusEr error
	logs     []string
	logsErr  error
	queried  []string
}

func (f *fakeTarget) IsActive(_ context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, name)
	return f.active
}

func (f *fakeTarget) Query(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusEr
}

func (f *fakeTarget) TailLogs(context.Context, string, time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs, f.logsErr
}

func (f *fakeTarget) setActive(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = v
}

func runningNode() *fakeTarget {
	return &fakeTarget{active: true, status: statusText, logs: []string{peersLine, proofLine}}
}

func newExporter(f *fakeTarget) *Exporter {
	return New(f, Options{Container: "quilibrium", Hostname: "node-01"})
}

// scrapeHTTP performs GET /metrics and parses the body back into families.
func scrapeHTTP(t *testing.T, h http.Handler) (map[string]*dto.MetricFamily, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(rr.Body.String()))
	if err != nil {
		t.Fatalf("parse exposition: %v\n%s", err, rr.Body.String())
	}
	return mfs, rr
}

func seriesCount(mfs map[string]*dto.MetricFamily) int {
	n := 0
	for _, mf := range mfs {
		n += len(mf.GetMetric())
	}
	return n
}

func gaugeValue(t *testing.T, mfs map[string]*dto.MetricFamily, name string) float64 {
	t.Helper()
	mf, ok := mfs[name]
	if !ok || len(mf.GetMetric()) != 1 {
		t.Fatalf("%s: want exactly one series, got %v", name, mf)
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func labelsOf(m *dto.Metric) map[string]string {
	out := map[string]string{}
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func TestMetrics_EndToEnd(t *testing.T) {
	host, err := os.Hostname()
	if err != nil {
		t.Skipf("no local hostname: %v", err)
	}
	e := New(runningNode(), Options{Container: "quilibrium"})

	mfs, rr := scrapeHTTP(t, e)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type: got %q", ct)
	}
	if n := seriesCount(mfs); n != 7 {
		t.Fatalf("series: got %d, want 7\n%s", n, rr.Body.String())
	}

	want := map[string]float64{
		metrics.PeerScore:        42,
		metrics.MaxFrame:         900,
		metrics.UnclaimedBalance: 3.5,
		metrics.PeerStoreCount:   10,
		metrics.NetworkPeerCount: 200,
		metrics.ProofIncrement:   7,
		metrics.ProofTimeTaken:   1.23,
	}
	for name, v := range want {
		if got := gaugeValue(t, mfs, name); got != v {
			t.Errorf("%s = %v, want %v", name, got, v)
		}
		labels := labelsOf(mfs[name].GetMetric()[0])
		if labels["peer_id"] != "Qm123" || labels["hostname"] != host {
			t.Errorf("%s labels: got %v, want peer_id=Qm123 hostname=%s", name, labels, host)
		}
	}
}

func TestMetrics_NodeDown_EmptyBody(t *testing.T) {
	f := runningNode()
	f.active = false
	e := newExporter(f)

	mfs, rr := scrapeHTTP(t, e)
	if len(mfs) != 0 || rr.Body.Len() != 0 {
		t.Fatalf("node down should yield an empty body, got:\n%s", rr.Body.String())
	}
	sc := e.Last()
	if sc.Active || sc.Identity != nil {
		t.Errorf("last scrape: got active=%v identity=%v", sc.Active, sc.Identity)
	}
	if len(sc.Errors) != 0 {
		t.Errorf("node down is not an error, got %v", sc.Errors)
	}
}

func TestMetrics_StoppedNode_NoStaleSeries(t *testing.T) {
	f := runningNode()
	e := newExporter(f)

	if mfs, _ := scrapeHTTP(t, e); seriesCount(mfs) != 7 {
		t.Fatalf("first scrape: got %d series, want 7", seriesCount(mfs))
	}

	f.setActive(false)
	for i := 0; i < 2; i++ {
		if mfs, rr := scrapeHTTP(t, e); seriesCount(mfs) != 0 {
			t.Fatalf("scrape %d after stop: got %d series\n%s", i+1, seriesCount(mfs), rr.Body.String())
		}
	}
}

func TestMetrics_IdentityChange_NoStaleLabels(t *testing.T) {
	f := runningNode()
	e := newExporter(f)
	scrapeHTTP(t, e)

	f.mu.Lock()
	f.status = strings.Replace(statusText, "Qm123", "QmNew", 1)
	f.mu.Unlock()

	mfs, _ := scrapeHTTP(t, e)
	for name, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if id := labelsOf(m)["peer_id"]; id != "QmNew" {
				t.Errorf("%s: stale peer_id %q survived", name, id)
			}
		}
	}
}

func TestMetrics_MissingPeerScore_Zero(t *testing.T) {
	f := runningNode()
	f.status = "Peer ID: Qm123\nMax Frame: 900\nUnclaimed balance: 3.5"
	mfs, _ := scrapeHTTP(t, newExporter(f))

	if got := gaugeValue(t, mfs, metrics.PeerScore); got != 0 {
		t.Errorf("peer score = %v, want 0", got)
	}
}

func TestMetrics_MissingPeerID_Unknown(t *testing.T) {
	f := runningNode()
	f.status = "Peer Score: 42\nMax Frame: 900\nUnclaimed balance: 3.5"
	mfs, _ := scrapeHTTP(t, newExporter(f))

	m := mfs[metrics.PeerScore].GetMetric()[0]
	if got := labelsOf(m)["peer_id"]; got != types.UnknownPeerID {
		t.Errorf("peer_id = %q, want %q", got, types.UnknownPeerID)
	}
	if m.GetGauge().GetValue() != 42 {
		t.Errorf("peer score = %v, want 42", m.GetGauge().GetValue())
	}
}

func TestMetrics_FirstLogMatchWins(t *testing.T) {
	f := runningNode()
	f.logs = []string{
		`peers in store {"peer_store_count":5}`,
		`peers in store {"peer_store_count":11,"network_peer_count":110}`,
		`peers in store {"peer_store_count":99,"network_peer_count":990}`,
	}
	mfs, _ := scrapeHTTP(t, newExporter(f))

	if got := gaugeValue(t, mfs, metrics.PeerStoreCount); got != 11 {
		t.Errorf("peer_store_count = %v, want 11", got)
	}
	if got := gaugeValue(t, mfs, metrics.NetworkPeerCount); got != 110 {
		t.Errorf("network_peer_count = %v, want 110", got)
	}
	if _, ok := mfs[metrics.ProofIncrement]; ok {
		t.Error("proof metrics should be absent without a proof line")
	}
}

// dockerRunner answers docker CLI invocations by subcommand.
type dockerRunner map[string]*runtime.Result

func (d dockerRunner) Run(_ context.Context, _ string, args ...string) (*runtime.Result, error) {
	if res, ok := d[args[0]]; ok {
		return res, nil
	}
	return nil, errors.New("unexpected docker subcommand " + args[0])
}

func TestMetrics_StatusNonZeroExit_PartialOutputPublished(t *testing.T) {
	docker := runtime.NewDocker(dockerRunner{
		"ps":   {Stdout: []byte("3f2a9c1b7d0e\n")},
		"exec": {Stdout: []byte("Peer ID: Qm123\n"), Stderr: []byte("rpc not ready"), ExitCode: 1},
		"logs": {Stderr: []byte(`peers in store {"peer_store_count":4,"network_peer_count":40}` + "\n")},
	}, runtime.Options{Timeout: time.Second})
	e := New(docker, Options{Container: "quilibrium", Hostname: "node-01"})

	mfs, rr := scrapeHTTP(t, e)
	if n := seriesCount(mfs); n != 5 {
		t.Fatalf("series: got %d, want 5\n%s", n, rr.Body.String())
	}
	for _, name := range []string{metrics.PeerScore, metrics.MaxFrame, metrics.UnclaimedBalance} {
		if got := gaugeValue(t, mfs, name); got != 0 {
			t.Errorf("%s = %v, want 0", name, got)
		}
	}
	if got := gaugeValue(t, mfs, metrics.NetworkPeerCount); got != 40 {
		t.Errorf("network_peer_count = %v, want 40", got)
	}
	for name, mf := range mfs {
		if id := labelsOf(mf.GetMetric()[0])["peer_id"]; id != "Qm123" {
			t.Errorf("%s peer_id = %q, want Qm123", name, id)
		}
	}
	if errs := e.Last().Errors; len(errs) != 0 {
		t.Errorf("no stage should fail, got %v", errs)
	}
}

func TestScrape_LastKeepsNewestStart(t *testing.T) {
	e := newExporter(runningNode())
	newer := &Scrape{At: time.Date(2024, 7, 1, 10, 0, 5, 0, time.UTC)}
	older := &Scrape{At: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)}

	e.publish(newer)
	e.publish(older)
	if e.Last() != newer {
		t.Fatalf("Last().At = %v, want %v", e.Last().At, newer.At)
	}

	newest := &Scrape{At: newer.At.Add(time.Second)}
	e.publish(newest)
	if e.Last() != newest {
		t.Fatalf("Last().At = %v, want %v", e.Last().At, newest.At)
	}
}

func TestMetrics_StatusFailure_EmptyScrape(t *testing.T) {
	f := runningNode()
	f.statusEr = errors.New("docker exec: container is restarting")
	e := newExporter(f)

	mfs, _ := scrapeHTTP(t, e)
	if len(mfs) != 0 {
		t.Fatalf("status failure should publish nothing, got %d families", len(mfs))
	}
	if _, ok := e.Last().Errors["status"]; !ok {
		t.Errorf("status error not recorded: %v", e.Last().Errors)
	}
}

func TestMetrics_LogFailure_StatusStillPublished(t *testing.T) {
	f := runningNode()
	f.logsErr = errors.New("docker logs: timeout")
	e := newExporter(f)

	mfs, _ := scrapeHTTP(t, e)
	if n := seriesCount(mfs); n != 3 {
		t.Fatalf("series: got %d, want 3 status gauges", n)
	}
	if _, ok := e.Last().Errors["logs"]; !ok {
		t.Errorf("logs error not recorded: %v", e.Last().Errors)
	}
}

func TestMetrics_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	newExporter(runningNode()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestMetrics_ConcurrentScrapes(t *testing.T) {
	e := newExporter(runningNode())

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			var parser expfmt.TextParser
			mfs, err := parser.TextToMetricFamilies(strings.NewReader(rr.Body.String()))
			if err != nil {
				errs <- err.Error()
				return
			}
			if n := seriesCount(mfs); n != 7 {
				errs <- "partial scrape observed"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestReconfigure_SwitchesContainer(t *testing.T) {
	f := runningNode()
	e := newExporter(f)
	e.Reconfigure(f, Options{Container: "quil-2", Hostname: "h2"})

	sc := e.Scrape(context.Background())
	if sc.Target != "quil-2" {
		t.Errorf("target: got %q, want quil-2", sc.Target)
	}
	if sc.Identity == nil || sc.Identity.Hostname != "h2" {
		t.Errorf("identity: got %+v", sc.Identity)
	}
	if last := f.queried[len(f.queried)-1]; last != "quil-2" {
		t.Errorf("probed container: got %q", last)
	}
}

func TestStatus_BeforeFirstScrape(t *testing.T) {
	rr := httptest.NewRecorder()
	newExporter(runningNode()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestStatus_AfterScrape(t *testing.T) {
	f := runningNode()
	f.logsErr = errors.New("boom")
	e := newExporter(f)
	fixed := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	e.Scrape(context.Background())

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if !resp.Active || resp.PeerID != "Qm123" || resp.Hostname != "node-01" {
		t.Errorf("identity fields: got %+v", resp)
	}
	if resp.Series != 3 {
		t.Errorf("series: got %d, want 3", resp.Series)
	}
	if resp.ScrapedAt != "2024-07-01T10:00:00Z" {
		t.Errorf("scraped_at: got %q", resp.ScrapedAt)
	}
	if resp.Errors["logs"] == "" {
		t.Errorf("errors: got %v, want logs entry", resp.Errors)
	}
}

func TestHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	newExporter(runningNode()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body: got %q", rr.Body.String())
	}
}
