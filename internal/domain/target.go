package domain

import "encoding/json"

// DebugTarget is one debuggable browsing context listed by the DevTools
// HTTP endpoint. Fields that are missing or not strings decode as empty.
type DebugTarget struct {
	ID                   string `json:"id,omitempty"`
	Type                 string `json:"type,omitempty"`
	Title                string `json:"title,omitempty"`
	URL                  string `json:"url,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
}

// Actionable reports whether the target can receive a reload command.
func (t DebugTarget) Actionable() bool {
	return t.URL != "" && t.WebSocketDebuggerURL != ""
}

// UnmarshalJSON tolerates entries whose fields have unexpected types so one
// odd target cannot fail the whole listing. An entry that is not an object
// decodes as an empty target, which never matches.
func (t *DebugTarget) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = DebugTarget{}
		return nil
	}
	str := func(key string) string {
		s, _ := raw[key].(string)
		return s
	}
	*t = DebugTarget{
		ID:                   str("id"),
		Type:                 str("type"),
		Title:                str("title"),
		URL:                  str("url"),
		WebSocketDebuggerURL: str("webSocketDebuggerUrl"),
	}
	return nil
}
