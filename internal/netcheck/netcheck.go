package netcheck

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Probe reports the network reachable when a HEAD request to URL gets any
// answer below 500 within the timeout.
type Probe struct {
	URL    string
	HTTP   *http.Client
	logger *slog.Logger
}

// New creates a probe with the given per-request timeout.
func New(url string, timeout time.Duration, logger *slog.Logger) *Probe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Probe{
		URL:    url,
		HTTP:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "netcheck"),
	}
}

func (p *Probe) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		p.logger.Warn("bad reachability url", "url", p.URL, "error", err)
		return false
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		p.logger.Debug("network unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		p.logger.Debug("reachability target unhealthy", "status", resp.Status)
		return false
	}
	return true
}

// Static always gives the same answer. Used with the memory backend and in
// tests.
type Static bool

func (s Static) IsReachable(context.Context) bool { return bool(s) }
