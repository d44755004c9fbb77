// Package health holds the client-side view of the server's /health response.
package health

// Response mirrors the JSON body of GET /health.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Healthy reports whether the server answered with a healthy status.
func (r *Response) Healthy() bool {
	return r.Status == "healthy"
}
