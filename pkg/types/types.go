package types

// UnknownPeerID is the peer_id label used when the status output carries no
// "Peer ID:" line. The series is still published under this label.
const UnknownPeerID = "unknown"

// NodeIdentity labels every series produced by one scrape.
type NodeIdentity struct {
	PeerID   string
	Hostname string
}

// StatusSnapshot holds the values parsed from the node's status command.
// Fields missing from the output are zero.
type StatusSnapshot struct {
	PeerScore        float64
	MaxFrame         float64
	UnclaimedBalance float64
}

// LogWindowSnapshot holds the values found in the trailing log window.
// A nil field was not observed and must not be published.
type LogWindowSnapshot struct {
	PeerStoreCount   *int64
	NetworkPeerCount *int64
	ProofIncrement   *int64
	ProofTimeTaken   *float64
}

// Empty reports whether no field was observed.
func (s LogWindowSnapshot) Empty() bool {
	return s.PeerStoreCount == nil && s.NetworkPeerCount == nil &&
		s.ProofIncrement == nil && s.ProofTimeTaken == nil
}

// Complete reports whether both event pairs were observed.
func (s LogWindowSnapshot) Complete() bool {
	return s.PeerStoreCount != nil && s.NetworkPeerCount != nil &&
		s.ProofIncrement != nil && s.ProofTimeTaken != nil
}
