package domain

import (
	"context"
	"sync"
	"time"
)

// SchemaVersion is bumped whenever an NDJSON event changes shape
const SchemaVersion = 1

// EventType names a diagnostic emitted while watching
type EventType string

const (
	EventReady              EventType = "ready"
	EventBuildStart         EventType = "build_start"
	EventBuildEnd           EventType = "build_end"
	EventBuildError         EventType = "build_error"
	EventLaunchingBrowser   EventType = "launching_browser"
	EventDebuggingAvailable EventType = "debugging_available"
	EventTargetNotFound     EventType = "target_not_found"
	EventTargetNoSocket     EventType = "target_no_socket"
	EventReloadSent         EventType = "reload_sent"
	EventReloaded           EventType = "reloaded"
	EventReloadUnconfirmed  EventType = "reload_unconfirmed"
	EventReloadFailed       EventType = "reload_failed"
	EventWarning            EventType = "warning"
	EventError              EventType = "error"
)

// EventTypes lists every diagnostic type in lifecycle order
var EventTypes = []EventType{
	EventReady,
	EventBuildStart,
	EventBuildEnd,
	EventBuildError,
	EventLaunchingBrowser,
	EventDebuggingAvailable,
	EventTargetNotFound,
	EventTargetNoSocket,
	EventReloadSent,
	EventReloaded,
	EventReloadUnconfirmed,
	EventReloadFailed,
	EventWarning,
	EventError,
}

// Severity classifies events for text rendering
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Severity returns how loudly an event should be shown
func (t EventType) Severity() Severity {
	switch t {
	case EventTargetNotFound, EventTargetNoSocket, EventReloadUnconfirmed, EventWarning:
		return SeverityWarn
	case EventBuildError, EventReloadFailed, EventError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// Event is the diagnostic record shared by every output format
type Event struct {
	Type          EventType `json:"type"`
	SchemaVersion int       `json:"schemaVersion"`
	Timestamp     string    `json:"timestamp"`
	AttemptID     string    `json:"attempt_id,omitempty"`
	Message       string    `json:"message,omitempty"`
	URL           string    `json:"url,omitempty"`
	Error         string    `json:"error,omitempty"`
	Code          string    `json:"code,omitempty"`
	Hint          string    `json:"hint,omitempty"`
	ElapsedMs     int64     `json:"elapsed_ms,omitempty"`
	PID           int       `json:"pid,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
}

// NewEvent creates an event stamped with the current UTC time
func NewEvent(typ EventType, message string) Event {
	return Event{
		Type:          typ,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Message:       message,
	}
}

// Reporter receives diagnostics. Implementations must be safe for
// concurrent use since overlapping reload attempts report independently.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(Event)

func (f ReporterFunc) Report(ev Event) { f(ev) }

// Discard drops every event
var Discard Reporter = ReporterFunc(func(Event) {})

// Recorder keeps every reported event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of what has been reported so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the reported event types in order
func (r *Recorder) Types() []EventType {
	events := r.Events()
	types := make([]EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

// Tee fans an event out to several reporters
func Tee(reporters ...Reporter) Reporter {
	return ReporterFunc(func(ev Event) {
		for _, r := range reporters {
			if r != nil {
				r.Report(ev)
			}
		}
	})
}

type attemptKey struct{}

// WithAttemptID tags a context with the reload attempt it belongs to
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptKey{}, id)
}

// AttemptID returns the attempt a context belongs to, or ""
func AttemptID(ctx context.Context) string {
	id, _ := ctx.Value(attemptKey{}).(string)
	return id
}
