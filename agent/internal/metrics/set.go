package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/quilmon/quilmon/pkg/types"
)

// Metric names exported for every node. Dashboards depend on these.
const (
	PeerScore        = "quilibrium_peer_score"
	MaxFrame         = "quilibrium_max_frame"
	UnclaimedBalance = "quilibrium_unclaimed_balance"
	PeerStoreCount   = "quilibrium_peer_store_count"
	NetworkPeerCount = "quilibrium_network_peer_count"
	ProofIncrement   = "quilibrium_proof_increment"
	ProofTimeTaken   = "quilibrium_proof_time_taken"
)

// Label names attached to every series.
const (
	LabelPeerID   = "peer_id"
	LabelHostname = "hostname"
)

var gaugeHelp = []struct{ name, help string }{
	{PeerScore, "Peer score of the node"},
	{MaxFrame, "Max frame of the node"},
	{UnclaimedBalance, "Unclaimed balance of the node"},
	{PeerStoreCount, "Peers in store"},
	{NetworkPeerCount, "Network peer count"},
	{ProofIncrement, "Proof increment"},
	{ProofTimeTaken, "Proof time taken"},
}

// Set is a scrape-local collection of gauges. It is not safe for concurrent
// use; each scrape builds its own.
type Set struct {
	reg    *prometheus.Registry
	gauges map[string]*prometheus.GaugeVec
	series int
}

// NewSet returns an empty Set with every gauge vector registered.
func NewSet() *Set {
	s := &Set{
		reg:    prometheus.NewRegistry(),
		gauges: make(map[string]*prometheus.GaugeVec, len(gaugeHelp)),
	}
	for _, g := range gaugeHelp {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}, []string{LabelPeerID, LabelHostname})
		s.reg.MustRegister(vec)
		s.gauges[g.name] = vec
	}
	return s
}

// Set records value for the named gauge under id's labels.
func (s *Set) Set(name string, id types.NodeIdentity, value float64) {
	vec, ok := s.gauges[name]
	if !ok {
		panic(fmt.Sprintf("metrics: unknown gauge %q", name))
	}
	vec.WithLabelValues(id.PeerID, id.Hostname).Set(value)
	s.series++
}

// PublishStatus records the three status-derived gauges.
func (s *Set) PublishStatus(id types.NodeIdentity, snap types.StatusSnapshot) {
	s.Set(PeerScore, id, snap.PeerScore)
	s.Set(MaxFrame, id, snap.MaxFrame)
	s.Set(UnclaimedBalance, id, snap.UnclaimedBalance)
}

// PublishLogs records the log-derived gauges that were observed.
func (s *Set) PublishLogs(id types.NodeIdentity, snap types.LogWindowSnapshot) {
	if snap.PeerStoreCount != nil {
		s.Set(PeerStoreCount, id, float64(*snap.PeerStoreCount))
	}
	if snap.NetworkPeerCount != nil {
		s.Set(NetworkPeerCount, id, float64(*snap.NetworkPeerCount))
	}
	if snap.ProofIncrement != nil {
		s.Set(ProofIncrement, id, float64(*snap.ProofIncrement))
	}
	if snap.ProofTimeTaken != nil {
		s.Set(ProofTimeTaken, id, *snap.ProofTimeTaken)
	}
}

// Len returns the number of series set so far.
func (s *Set) Len() int {
	return s.series
}

// Gather returns the populated metric families sorted by name.
func (s *Set) Gather() ([]*dto.MetricFamily, error) {
	mfs, err := s.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}
	return mfs, nil
}

// TextFormat is the exposition format served on /metrics.
var TextFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// Encode writes families to w in the given exposition format.
func Encode(w io.Writer, format expfmt.Format, mfs []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
