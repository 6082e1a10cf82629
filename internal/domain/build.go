package domain

import "time"

// BuildKind identifies a build lifecycle notification
type BuildKind string

const (
	BuildStart BuildKind = "START"
	BuildEnd   BuildKind = "END"
	BuildError BuildKind = "ERROR"
)

// BuildEvent is one notification from a build watcher
type BuildEvent struct {
	Kind  BuildKind
	Error string // payload for BuildError
	Time  time.Time
}

// NewBuildEvent stamps a build event with the current time
func NewBuildEvent(kind BuildKind, payload string) BuildEvent {
	return BuildEvent{Kind: kind, Error: payload, Time: time.Now()}
}
