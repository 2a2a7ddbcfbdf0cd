package exporter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/quilmon/quilmon/agent/internal/metrics"
)

func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// metrics serves GET /metrics. The response is always 200; a node that is
// down or a failed stage only shrinks the body.
func (e *Exporter) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sc := e.Scrape(r.Context())

	var buf bytes.Buffer
	if err := metrics.Encode(&buf, metrics.TextFormat, sc.Families); err != nil {
		slog.Error("exporter: encode failed", "err", err)
	}
	w.Header().Set("Content-Type", string(metrics.TextFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(buf.Bytes())
	}
}

// status serves GET /api/v1/status: the last scrape without running a new one.
func (e *Exporter) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sc := e.Last()
	if sc == nil {
		jsonErr(w, http.StatusNotFound, "no scrape recorded yet")
		return
	}
	jsonResp(w, http.StatusOK, toStatusResponse(sc))
}

// healthz serves GET /healthz.
func (e *Exporter) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, healthResponse{Status: "ok"})
}

// --- helpers ----------------------------------------------------------------

func toStatusResponse(sc *Scrape) StatusResponse {
	resp := StatusResponse{
		Target:     sc.Target,
		Active:     sc.Active,
		Series:     sc.Series,
		DurationMs: float64(sc.Duration) / float64(time.Millisecond),
		ScrapedAt:  sc.At.UTC().Format(time.RFC3339),
	}
	if sc.Identity != nil {
		resp.PeerID = sc.Identity.PeerID
		resp.Hostname = sc.Identity.Hostname
	}
	if len(sc.Errors) > 0 {
		resp.Errors = sc.Errors
	}
	return resp
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
