// Package output renders diagnostics for humans and for machines.
package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vburojevic/tabreload/internal/domain"
)

// NDJSONWriter writes one JSON object per line. It is safe for concurrent use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{enc: enc}
}

// Write encodes any value as a single line
func (w *NDJSONWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// Report implements domain.Reporter
func (w *NDJSONWriter) Report(ev domain.Event) {
	if ev.SchemaVersion == 0 {
		ev.SchemaVersion = domain.SchemaVersion
	}
	_ = w.Write(ev)
}

// WriteError writes an error event
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	ev := domain.NewEvent(domain.EventError, message)
	ev.Code = code
	if len(hint) > 0 {
		ev.Hint = hint[0]
	}
	return w.Write(ev)
}

// TargetOutput is one line of `tabreload targets`
type TargetOutput struct {
	Type                 string `json:"type"`
	SchemaVersion        int    `json:"schemaVersion"`
	Timestamp            string `json:"timestamp"`
	ID                   string `json:"id,omitempty"`
	TargetType           string `json:"target_type,omitempty"`
	Title                string `json:"title,omitempty"`
	URL                  string `json:"url,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
	Match                bool   `json:"match"`
}

// WriteTarget writes a debuggable target, flagging whether it would be reloaded
func (w *NDJSONWriter) WriteTarget(target domain.DebugTarget, match bool) error {
	return w.Write(TargetOutput{
		Type:                 "target",
		SchemaVersion:        domain.SchemaVersion,
		Timestamp:            time.Now().UTC().Format(time.RFC3339Nano),
		ID:                   target.ID,
		TargetType:           target.Type,
		Title:                target.Title,
		URL:                  target.URL,
		WebSocketDebuggerURL: target.WebSocketDebuggerURL,
		Match:                match,
	})
}
