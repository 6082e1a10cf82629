// Package orchestrator reloads the browser tab after every successful build.
//
// Each build-end event starts an independent attempt: make debugging
// available, resolve the target tab, send the reload. Attempts are not
// serialized; when builds finish faster than an attempt completes several
// may be in flight and the last reload wins. Every attempt failure is
// reported and swallowed so the watch loop keeps running.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vburojevic/tabreload/internal/build"
	"github.com/vburojevic/tabreload/internal/devtools"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

// SessionEnsurer is satisfied by *devtools.Ensurer
type SessionEnsurer interface {
	Ensure(ctx context.Context) (devtools.EnsureResult, error)
}

// TargetResolver is satisfied by *devtools.Resolver
type TargetResolver interface {
	Resolve(ctx context.Context) (domain.DebugTarget, error)
}

// Reloader is satisfied by *devtools.Commander
type Reloader interface {
	Reload(ctx context.Context, target domain.DebugTarget) (devtools.ReloadResult, error)
}

// Options tune the orchestrator
type Options struct {
	// TargetURL is the configured prefix, used in diagnostics
	TargetURL string
	// Coalesce collapses overlapping build-end events into at most one
	// pending attempt instead of running every attempt concurrently.
	Coalesce bool
	// MaxBuilds stops Run after this many build-end events (0 = never)
	MaxBuilds int

	Reporter domain.Reporter
	Logger   *zap.Logger
	NewID    func() string
}

// Orchestrator coordinates the devtools components over a build stream
type Orchestrator struct {
	ensurer  SessionEnsurer
	resolver TargetResolver
	reloader Reloader
	opts     Options
}

// New creates an orchestrator
func New(ensurer SessionEnsurer, resolver TargetResolver, reloader Reloader, opts Options) *Orchestrator {
	if opts.Reporter == nil {
		opts.Reporter = domain.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Orchestrator{ensurer: ensurer, resolver: resolver, reloader: reloader, opts: opts}
}

// Preflight makes debugging available before the build starts. A failure here
// means the setup is broken and is returned to the caller.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	if _, err := o.ensurer.Ensure(ctx); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	return nil
}

// Run consumes build events until ctx is cancelled, the stream ends or
// MaxBuilds is reached. In-flight attempts are awaited before returning.
func (o *Orchestrator) Run(ctx context.Context, sub *build.Subscription) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	var pending chan struct{}
	if o.opts.Coalesce {
		pending = make(chan struct{}, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-pending:
					if !ok {
						return
					}
					_ = o.Attempt(ctx)
				}
			}
		}()
		defer close(pending)
	}

	builds := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if err := sub.Err(); err != nil {
					return err
				}
				return build.ErrWatcherExited
			}
			switch ev.Kind {
			case domain.BuildStart:
				o.opts.Reporter.Report(domain.NewEvent(domain.EventBuildStart, "Build started"))
			case domain.BuildError:
				report := domain.NewEvent(domain.EventBuildError, "Build error")
				report.Error = ev.Error
				o.opts.Reporter.Report(report)
			case domain.BuildEnd:
				builds++
				o.opts.Reporter.Report(domain.NewEvent(domain.EventBuildEnd, "Build finished. Reloading tab..."))
				if pending != nil {
					select {
					case pending <- struct{}{}:
					default:
						o.opts.Logger.Debug("reload already pending, coalescing build end")
					}
				} else {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_ = o.Attempt(ctx)
					}()
				}
				if o.opts.MaxBuilds > 0 && builds >= o.opts.MaxBuilds {
					return nil
				}
			}
		}
	}
}

// Attempt runs one ensure, resolve, reload sequence and reports how it
// ended. The error is returned for one-shot callers; Run ignores it.
func (o *Orchestrator) Attempt(ctx context.Context) error {
	id := o.opts.NewID()
	ctx = domain.WithAttemptID(ctx, id)
	logger := o.opts.Logger.With(zap.String("attempt_id", id))

	if _, err := o.ensurer.Ensure(ctx); err != nil {
		o.failed(ctx, err)
		return err
	}

	target, err := o.resolver.Resolve(ctx)
	switch {
	case errors.Is(err, devtools.ErrTargetNotFound):
		ev := o.event(ctx, domain.EventTargetNotFound, "Target tab not found")
		ev.URL = o.opts.TargetURL
		o.opts.Reporter.Report(ev)
		return err
	case errors.Is(err, devtools.ErrTargetNoSocket):
		ev := o.event(ctx, domain.EventTargetNoSocket, "Target has no webSocketDebuggerUrl")
		ev.URL = target.URL
		o.opts.Reporter.Report(ev)
		return err
	case err != nil:
		o.failed(ctx, err)
		return err
	}
	logger.Debug("target resolved", zap.String("url", target.URL), zap.String("id", target.ID))

	result, err := o.reloader.Reload(ctx, target)
	if err != nil {
		o.failed(ctx, err)
		return err
	}

	var ev domain.Event
	switch result.Outcome {
	case devtools.OutcomeUnconfirmed:
		ev = o.event(ctx, domain.EventReloadUnconfirmed, "No acknowledgment before timeout; reload may still have happened")
	default:
		ev = o.event(ctx, domain.EventReloaded, "Reloaded")
		ev.Error = result.ProtocolError
	}
	ev.URL = target.URL
	ev.Outcome = string(result.Outcome)
	ev.ElapsedMs = result.Elapsed.Milliseconds()
	o.opts.Reporter.Report(ev)
	return nil
}

func (o *Orchestrator) event(ctx context.Context, typ domain.EventType, message string) domain.Event {
	ev := domain.NewEvent(typ, message)
	ev.AttemptID = domain.AttemptID(ctx)
	return ev
}

func (o *Orchestrator) failed(ctx context.Context, err error) {
	if ctx.Err() != nil {
		o.opts.Logger.Debug("attempt cancelled", zap.Error(err))
		return
	}
	ev := o.event(ctx, domain.EventReloadFailed, "Reload failed")
	ev.Error = err.Error()
	ev.Code = ErrorCode(err)
	var timeout *devtools.AvailabilityTimeoutError
	if errors.As(err, &timeout) {
		ev.Hint = timeout.Hint()
		ev.URL = timeout.Endpoint
	}
	o.opts.Reporter.Report(ev)
}

// ErrorCode maps an attempt failure to a stable machine-readable code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, devtools.ErrAvailabilityTimeout):
		return "AVAILABILITY_TIMEOUT"
	case errors.Is(err, devtools.ErrLaunch):
		return "LAUNCH_FAILED"
	case errors.Is(err, devtools.ErrFetch):
		return "FETCH_ERROR"
	case errors.Is(err, devtools.ErrTargetNotFound):
		return "TARGET_NOT_FOUND"
	case errors.Is(err, devtools.ErrTargetNoSocket):
		return "TARGET_NO_SOCKET"
	case errors.Is(err, devtools.ErrSocketTimeout):
		return "SOCKET_TIMEOUT"
	case errors.Is(err, devtools.ErrSocket):
		return "SOCKET_ERROR"
	case errors.Is(err, build.ErrWatcherSetup):
		return "WATCHER_SETUP_FAILED"
	default:
		return "RELOAD_FAILED"
	}
}
