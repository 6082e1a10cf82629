// Package build turns an external build tool into a stream of lifecycle
// events.
package build

import (
	"context"
	"errors"
	"sync"

	"github.com/vburojevic/tabreload/internal/domain"
)

var (
	// ErrWatcherSetup means the build tool could not be started in watch mode
	ErrWatcherSetup = errors.New("build watcher setup failed")
	// ErrWatcherExited means the watch process ended on its own
	ErrWatcherExited = errors.New("build watcher exited")
)

// Source starts watching and yields build events until the subscription is
// closed.
type Source interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Subscription is a live build event stream
type Subscription struct {
	events <-chan domain.BuildEvent
	stop   func()
	once   sync.Once

	mu  sync.Mutex
	err error
}

// NewSubscription wraps an existing channel. stop may be nil.
func NewSubscription(events <-chan domain.BuildEvent, stop func()) *Subscription {
	if stop == nil {
		stop = func() {}
	}
	return &Subscription{events: events, stop: stop}
}

// emitFunc delivers one event; false means the subscription is closing
type emitFunc func(domain.BuildEvent) bool

// run executes a watch loop in the background and closes the event channel
// when it returns.
func run(parent context.Context, loop func(ctx context.Context, emit emitFunc) error) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	events := make(chan domain.BuildEvent, 16)
	done := make(chan struct{})

	sub := &Subscription{events: events}
	sub.stop = func() {
		cancel()
		<-done
	}

	go func() {
		defer close(done)
		defer close(events)
		err := loop(ctx, func(ev domain.BuildEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if ctx.Err() == nil {
			sub.setErr(err)
		}
	}()
	return sub
}

// Events is closed when the watcher stops
func (s *Subscription) Events() <-chan domain.BuildEvent { return s.events }

// Err reports why the stream ended on its own, or nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Close stops the watcher and waits for it to release its resources
func (s *Subscription) Close() error {
	s.once.Do(s.stop)
	return nil
}
