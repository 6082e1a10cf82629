package devtools

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

// AvailabilityChecker is satisfied by *Probe
type AvailabilityChecker interface {
	Available(ctx context.Context) bool
}

// BrowserLauncher is satisfied by *Launcher
type BrowserLauncher interface {
	Launch(cfg Config) (ProcessHandle, error)
}

// EnsureResult describes what Ensure had to do
type EnsureResult struct {
	Launched bool
	Handle   ProcessHandle
	Polls    int
	Elapsed  time.Duration
}

// Ensurer makes the debugging endpoint available, launching a browser only
// when the endpoint does not already answer.
type Ensurer struct {
	cfg      Config
	probe    AvailabilityChecker
	launcher BrowserLauncher
	opts     options
}

// NewEnsurer composes a probe and a launcher
func NewEnsurer(cfg Config, probe AvailabilityChecker, launcher BrowserLauncher, opts ...Option) *Ensurer {
	return &Ensurer{
		cfg:      cfg.WithDefaults(),
		probe:    probe,
		launcher: launcher,
		opts:     buildOptions(opts),
	}
}

// Ensure returns once the endpoint answers. It launches at most one browser
// per call and polls until AvailabilityTimeout elapses.
func (e *Ensurer) Ensure(ctx context.Context) (EnsureResult, error) {
	if e.probe.Available(ctx) {
		return EnsureResult{}, nil
	}

	ev := domain.NewEvent(domain.EventLaunchingBrowser, fmt.Sprintf("DevTools is not available. Launching browser with --remote-debugging-port=%d", e.cfg.Port))
	ev.URL = e.cfg.Endpoint
	e.opts.report(ctx, ev)

	handle, err := e.launcher.Launch(e.cfg)
	if err != nil {
		return EnsureResult{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	result := EnsureResult{Launched: true, Handle: handle}

	clk := e.opts.clock
	start := clk.Now()
	for {
		result.Elapsed = clk.Since(start)
		if result.Elapsed >= e.cfg.AvailabilityTimeout {
			return result, &AvailabilityTimeoutError{Endpoint: e.cfg.Endpoint, Elapsed: result.Elapsed}
		}
		if err := sleep(ctx, clk, e.cfg.PollInterval); err != nil {
			return result, err
		}
		result.Polls++
		if e.probe.Available(ctx) {
			result.Elapsed = clk.Since(start)
			ev := domain.NewEvent(domain.EventDebuggingAvailable, "DevTools is now available")
			ev.URL = e.cfg.Endpoint
			ev.PID = handle.PID
			ev.ElapsedMs = result.Elapsed.Milliseconds()
			e.opts.report(ctx, ev)
			e.opts.logger.Debug("devtools available", zap.Int("polls", result.Polls), zap.Duration("elapsed", result.Elapsed))
			return result, nil
		}
	}
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
