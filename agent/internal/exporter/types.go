package exporter

// StatusResponse is the JSON body of GET /api/v1/status.
type StatusResponse struct {
	Target     string            `json:"target"`
	Active     bool              `json:"active"`
	PeerID     string            `json:"peer_id,omitempty"`
	Hostname   string            `json:"hostname,omitempty"`
	Series     int               `json:"series"`
	Errors     map[string]string `json:"errors,omitempty"`
	ScrapedAt  string            `json:"scraped_at"`
	DurationMs float64           `json:"duration_ms"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
