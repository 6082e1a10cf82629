package devtools

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Probe checks whether the remote debugging endpoint answers
type Probe struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewProbe creates a probe for cfg.Endpoint
func NewProbe(cfg Config, opts ...Option) *Probe {
	cfg = cfg.WithDefaults()
	o := buildOptions(opts)
	client := o.client
	if client == nil {
		client = &http.Client{Timeout: cfg.ProbeTimeout}
	}
	return &Probe{endpoint: cfg.Endpoint, client: client, logger: o.logger}
}

// Available performs a single request and reports whether it succeeded.
// Every failure collapses to false.
func (p *Probe) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		p.logger.Debug("probe request", zap.String("endpoint", p.endpoint), zap.Error(err))
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", zap.String("endpoint", p.endpoint), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		p.logger.Debug("probe status", zap.String("endpoint", p.endpoint), zap.Int("status", resp.StatusCode))
	}
	return ok
}
