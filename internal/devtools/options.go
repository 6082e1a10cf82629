package devtools

import (
	"context"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

type options struct {
	clock    clock.Clock
	logger   *zap.Logger
	reporter domain.Reporter
	client   *http.Client
}

// Option customizes a devtools component
type Option func(*options)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the debug logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReporter sets where user-facing diagnostics go
func WithReporter(r domain.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithHTTPClient overrides the client used against the debugging endpoint
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.reporter == nil {
		o.reporter = domain.Discard
	}
	return o
}

func (o options) report(ctx context.Context, ev domain.Event) {
	ev.AttemptID = domain.AttemptID(ctx)
	o.reporter.Report(ev)
}
