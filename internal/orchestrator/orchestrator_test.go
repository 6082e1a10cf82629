package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/tabreload/internal/build"
	"github.com/vburojevic/tabreload/internal/devtools"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap/zaptest"
)

var testTarget = domain.DebugTarget{
	ID:                   "page-1",
	URL:                  "http://localhost:5173/",
	WebSocketDebuggerURL: "ws://localhost:9222/devtools/page/1",
}

type fakeEnsurer struct {
	calls atomic.Int32
	fn    func(call int32) error
}

func (f *fakeEnsurer) Ensure(ctx context.Context) (devtools.EnsureResult, error) {
	n := f.calls.Add(1)
	if f.fn != nil {
		return devtools.EnsureResult{}, f.fn(n)
	}
	return devtools.EnsureResult{}, nil
}

type fakeResolver struct {
	calls  atomic.Int32
	target domain.DebugTarget
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context) (domain.DebugTarget, error) {
	f.calls.Add(1)
	if f.err != nil {
		return f.target, f.err
	}
	return testTarget, nil
}

type fakeReloader struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	entered  chan struct{}
	release  chan struct{}
	result   devtools.ReloadResult
	err      error
}

func (f *fakeReloader) Reload(ctx context.Context, target domain.DebugTarget) (devtools.ReloadResult, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return devtools.ReloadResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return devtools.ReloadResult{}, f.err
	}
	if f.result.Outcome == "" {
		return devtools.ReloadResult{Outcome: devtools.OutcomeAcknowledged, Elapsed: 12 * time.Millisecond}, nil
	}
	return f.result, nil
}

type harness struct {
	ensurer  *fakeEnsurer
	resolver *fakeResolver
	reloader *fakeReloader
	rec      *domain.Recorder
	events   chan domain.BuildEvent
	sub      *build.Subscription
}

func newHarness() *harness {
	events := make(chan domain.BuildEvent)
	return &harness{
		ensurer:  &fakeEnsurer{},
		resolver: &fakeResolver{},
		reloader: &fakeReloader{},
		rec:      &domain.Recorder{},
		events:   events,
		sub:      build.NewSubscription(events, nil),
	}
}

func (h *harness) orchestrator(t *testing.T, opts Options) *Orchestrator {
	opts.Reporter = h.rec
	opts.Logger = zaptest.NewLogger(t)
	if opts.TargetURL == "" {
		opts.TargetURL = "http://localhost:5173/"
	}
	var seq atomic.Int32
	opts.NewID = func() string { return fmt.Sprintf("attempt-%d", seq.Add(1)) }
	return New(h.ensurer, h.resolver, h.reloader, opts)
}

func (h *harness) send(kind domain.BuildKind, payload string) {
	h.events <- domain.NewBuildEvent(kind, payload)
}

func ofType(events []domain.Event, typ domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestRunBuildErrorNeverTouchesDevtools(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t, Options{})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), h.sub) }()

	h.send(domain.BuildStart, "")
	h.send(domain.BuildError, "[vite]: Rollup failed to resolve import")
	close(h.events)

	err := <-done
	require.ErrorIs(t, err, build.ErrWatcherExited)

	assert.Zero(t, h.ensurer.calls.Load())
	assert.Zero(t, h.resolver.calls.Load())
	assert.Zero(t, h.reloader.calls.Load())
	assert.Equal(t, []domain.EventType{domain.EventBuildStart, domain.EventBuildError}, h.rec.Types())

	buildErr := ofType(h.rec.Events(), domain.EventBuildError)
	require.Len(t, buildErr, 1)
	assert.Contains(t, buildErr[0].Error, "Rollup failed")
}

func TestRunReloadsAfterBuildEnd(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t, Options{MaxBuilds: 1})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), h.sub) }()

	h.send(domain.BuildStart, "")
	h.send(domain.BuildEnd, "")
	require.NoError(t, <-done)

	assert.EqualValues(t, 1, h.ensurer.calls.Load())
	assert.EqualValues(t, 1, h.resolver.calls.Load())
	assert.EqualValues(t, 1, h.reloader.calls.Load())
	assert.Equal(t, []domain.EventType{domain.EventBuildStart, domain.EventBuildEnd, domain.EventReloaded}, h.rec.Types())

	reloaded := ofType(h.rec.Events(), domain.EventReloaded)[0]
	assert.Equal(t, "attempt-1", reloaded.AttemptID)
	assert.Equal(t, testTarget.URL, reloaded.URL)
	assert.Equal(t, "acknowledged", reloaded.Outcome)
	assert.EqualValues(t, 12, reloaded.ElapsedMs)
}

func TestRunSurvivesAttemptFailures(t *testing.T) {
	h := newHarness()
	h.ensurer.fn = func(call int32) error {
		if call == 1 {
			return &devtools.AvailabilityTimeoutError{Endpoint: "http://localhost:9222/json", Elapsed: 15 * time.Second}
		}
		return nil
	}
	o := h.orchestrator(t, Options{Coalesce: true, MaxBuilds: 2})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), h.sub) }()

	h.send(domain.BuildEnd, "")
	require.Eventually(t, func() bool {
		return len(ofType(h.rec.Events(), domain.EventReloadFailed)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	h.send(domain.BuildEnd, "")
	require.NoError(t, <-done)

	failed := ofType(h.rec.Events(), domain.EventReloadFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "AVAILABILITY_TIMEOUT", failed[0].Code)
	assert.Contains(t, failed[0].Hint, "user-data-dir")
	assert.Equal(t, "attempt-1", failed[0].AttemptID)

	assert.Len(t, ofType(h.rec.Events(), domain.EventReloaded), 1)
	assert.EqualValues(t, 1, h.resolver.calls.Load(), "failed ensure must not resolve")
}

func TestAttemptClassification(t *testing.T) {
	t.Run("target not found", func(t *testing.T) {
		h := newHarness()
		h.resolver.err = devtools.ErrTargetNotFound
		o := h.orchestrator(t, Options{TargetURL: "http://localhost:3000/"})

		err := o.Attempt(context.Background())
		require.ErrorIs(t, err, devtools.ErrTargetNotFound)
		assert.Zero(t, h.reloader.calls.Load())

		events := h.rec.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTargetNotFound, events[0].Type)
		assert.Equal(t, domain.SeverityWarn, events[0].Type.Severity())
		assert.Equal(t, "http://localhost:3000/", events[0].URL)
	})

	t.Run("target without socket", func(t *testing.T) {
		h := newHarness()
		h.resolver.target = domain.DebugTarget{URL: "http://localhost:5173/app"}
		h.resolver.err = fmt.Errorf("%w: %s", devtools.ErrTargetNoSocket, "http://localhost:5173/app")
		o := h.orchestrator(t, Options{})

		err := o.Attempt(context.Background())
		require.ErrorIs(t, err, devtools.ErrTargetNoSocket)
		assert.Zero(t, h.reloader.calls.Load(), "no socket attempt without a socket url")
		assert.Equal(t, []domain.EventType{domain.EventTargetNoSocket}, h.rec.Types())
		assert.Equal(t, "http://localhost:5173/app", h.rec.Events()[0].URL)
	})

	t.Run("fetch failure", func(t *testing.T) {
		h := newHarness()
		h.resolver.err = fmt.Errorf("%w: connection refused", devtools.ErrFetch)
		o := h.orchestrator(t, Options{})

		require.Error(t, o.Attempt(context.Background()))
		events := h.rec.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventReloadFailed, events[0].Type)
		assert.Equal(t, "FETCH_ERROR", events[0].Code)
	})

	t.Run("socket timeout", func(t *testing.T) {
		h := newHarness()
		h.reloader.err = fmt.Errorf("%w: dial", devtools.ErrSocketTimeout)
		o := h.orchestrator(t, Options{})

		require.ErrorIs(t, o.Attempt(context.Background()), devtools.ErrSocketTimeout)
		assert.Equal(t, "SOCKET_TIMEOUT", h.rec.Events()[0].Code)
	})

	t.Run("unconfirmed is a soft success", func(t *testing.T) {
		h := newHarness()
		h.reloader.result = devtools.ReloadResult{Outcome: devtools.OutcomeUnconfirmed, Elapsed: 5 * time.Second}
		o := h.orchestrator(t, Options{})

		require.NoError(t, o.Attempt(context.Background()))
		events := h.rec.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventReloadUnconfirmed, events[0].Type)
		assert.Equal(t, "unconfirmed", events[0].Outcome)
		assert.EqualValues(t, 5000, events[0].ElapsedMs)
	})

	t.Run("peer closed counts as reloaded", func(t *testing.T) {
		h := newHarness()
		h.reloader.result = devtools.ReloadResult{Outcome: devtools.OutcomePeerClosed}
		o := h.orchestrator(t, Options{})

		require.NoError(t, o.Attempt(context.Background()))
		assert.Equal(t, []domain.EventType{domain.EventReloaded}, h.rec.Types())
		assert.Equal(t, "peer_closed", h.rec.Events()[0].Outcome)
	})

	t.Run("cancelled attempt is not reported", func(t *testing.T) {
		h := newHarness()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		h.ensurer.fn = func(int32) error { return ctx.Err() }
		o := h.orchestrator(t, Options{})

		require.ErrorIs(t, o.Attempt(ctx), context.Canceled)
		assert.Empty(t, h.rec.Events())
	})
}

func TestRunOverlappingAttempts(t *testing.T) {
	h := newHarness()
	h.reloader.entered = make(chan struct{}, 2)
	h.reloader.release = make(chan struct{})
	o := h.orchestrator(t, Options{MaxBuilds: 2})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), h.sub) }()

	h.send(domain.BuildEnd, "")
	h.send(domain.BuildEnd, "")
	<-h.reloader.entered
	<-h.reloader.entered

	assert.EqualValues(t, 2, h.reloader.inFlight.Load(), "second attempt must not wait for the first")
	select {
	case <-done:
		t.Fatal("Run returned before in-flight attempts finished")
	default:
	}

	close(h.reloader.release)
	require.NoError(t, <-done)
	assert.Len(t, ofType(h.rec.Events(), domain.EventReloaded), 2)

	ids := map[string]bool{}
	for _, ev := range ofType(h.rec.Events(), domain.EventReloaded) {
		ids[ev.AttemptID] = true
	}
	assert.Len(t, ids, 2, "each attempt gets its own id")
}

func TestRunCoalesce(t *testing.T) {
	h := newHarness()
	h.reloader.entered = make(chan struct{}, 3)
	h.reloader.release = make(chan struct{})
	o := h.orchestrator(t, Options{Coalesce: true})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), h.sub) }()

	h.send(domain.BuildEnd, "")
	<-h.reloader.entered
	h.send(domain.BuildEnd, "")
	h.send(domain.BuildEnd, "")
	// Run has finished with the third end once it accepts the next event.
	h.send(domain.BuildStart, "")

	close(h.reloader.release)
	require.Eventually(t, func() bool {
		return len(ofType(h.rec.Events(), domain.EventReloaded)) == 2
	}, 2*time.Second, 5*time.Millisecond)
	close(h.events)
	require.ErrorIs(t, <-done, build.ErrWatcherExited)

	assert.EqualValues(t, 2, h.reloader.calls.Load(), "one running plus one pending")
	assert.EqualValues(t, 1, h.reloader.peak.Load())
	assert.Len(t, ofType(h.rec.Events(), domain.EventBuildEnd), 3)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness()
	h.reloader.entered = make(chan struct{}, 1)
	h.reloader.release = make(chan struct{})
	o := h.orchestrator(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, h.sub) }()

	h.send(domain.BuildEnd, "")
	<-h.reloader.entered
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Empty(t, ofType(h.rec.Events(), domain.EventReloadFailed), "cancelled attempts are not failures")
}

func TestRunReturnsSubscriptionError(t *testing.T) {
	events := make(chan domain.BuildEvent)
	close(events)
	h := newHarness()
	o := h.orchestrator(t, Options{})

	err := o.Run(context.Background(), build.NewSubscription(events, nil))
	assert.True(t, errors.Is(err, build.ErrWatcherExited))
}

func TestPreflight(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t, Options{})
	require.NoError(t, o.Preflight(context.Background()))
	assert.EqualValues(t, 1, h.ensurer.calls.Load())

	h.ensurer.fn = func(int32) error { return &devtools.AvailabilityTimeoutError{Endpoint: "http://localhost:9222/json"} }
	err := o.Preflight(context.Background())
	require.ErrorIs(t, err, devtools.ErrAvailabilityTimeout)
	assert.Empty(t, h.rec.Events(), "preflight failures are returned, not reported")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&devtools.AvailabilityTimeoutError{}, "AVAILABILITY_TIMEOUT"},
		{fmt.Errorf("wrap: %w", devtools.ErrFetch), "FETCH_ERROR"},
		{devtools.ErrSocket, "SOCKET_ERROR"},
		{fmt.Errorf("%w: npx", build.ErrWatcherSetup), "WATCHER_SETUP_FAILED"},
		{fmt.Errorf("%w: %w", devtools.ErrLaunch, errors.New("exec: not found")), "LAUNCH_FAILED"},
		{errors.New("boom"), "RELOAD_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
