package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

// Resolver lists debuggable targets and picks the one to reload
type Resolver struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewResolver creates a resolver against cfg.Endpoint
func NewResolver(cfg Config, opts ...Option) *Resolver {
	cfg = cfg.WithDefaults()
	o := buildOptions(opts)
	client := o.client
	if client == nil {
		client = &http.Client{Timeout: cfg.ProbeTimeout}
	}
	return &Resolver{cfg: cfg, client: client, logger: o.logger}
}

// List fetches the current target list in the order the browser returns it
func (r *Resolver) List(ctx context.Context) ([]domain.DebugTarget, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrFetch, resp.Status)
	}

	var targets []domain.DebugTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetch, err)
	}
	r.logger.Debug("devtools targets", zap.Int("count", len(targets)))
	return targets, nil
}

// Resolve returns the first target whose URL starts with the configured
// prefix. ErrTargetNotFound and ErrTargetNoSocket are expected outcomes.
func (r *Resolver) Resolve(ctx context.Context) (domain.DebugTarget, error) {
	targets, err := r.List(ctx)
	if err != nil {
		return domain.DebugTarget{}, err
	}
	return SelectTarget(targets, r.cfg.TargetURLPrefix)
}

// SelectTarget applies first-match prefix selection to a target list
func SelectTarget(targets []domain.DebugTarget, prefix string) (domain.DebugTarget, error) {
	target, ok := lo.Find(targets, func(t domain.DebugTarget) bool {
		return t.URL != "" && strings.HasPrefix(t.URL, prefix)
	})
	if !ok {
		return domain.DebugTarget{}, fmt.Errorf("%w: %s", ErrTargetNotFound, prefix)
	}
	if target.WebSocketDebuggerURL == "" {
		return target, fmt.Errorf("%w: %s", ErrTargetNoSocket, target.URL)
	}
	return target, nil
}
