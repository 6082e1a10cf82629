package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/vburojevic/tabreload/internal/domain"
)

// SchemaCmd outputs JSON Schema for tabreload output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (event,error,target,tmux,version). Default: all"`
}

var schemaTypes = []string{"event", "error", "target", "tmux", "version"}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	schemas := map[string]interface{}{
		"event":   eventSchema(),
		"error":   errorSchema(),
		"target":  targetSchema(),
		"tmux":    tmuxSchema(),
		"version": versionSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypes
	}

	defs := map[string]interface{}{}
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}
	if len(defs) == 0 {
		return outputErrorCommon(globals, "UNKNOWN_SCHEMA", fmt.Sprintf("no schema for %s", strings.Join(c.Type, ",")),
			"valid types: "+strings.Join(schemaTypes, ","))
	}

	out := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "tabreload Output Schemas",
		"description": "JSON Schema definitions for all tabreload NDJSON output types",
		"definitions": defs,
	}
	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func eventSchema() map[string]interface{} {
	types := lo.Map(domain.EventTypes, func(t domain.EventType, _ int) string { return string(t) })
	return map[string]interface{}{
		"type":        "object",
		"title":       "Diagnostic Event",
		"description": "One step of the build and reload lifecycle",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":        "string",
				"enum":        types,
				"description": "Event type",
			},
			"schemaVersion": map[string]interface{}{
				"type":  "integer",
				"const": domain.SchemaVersion,
			},
			"timestamp": map[string]interface{}{
				"type":        "string",
				"format":      "date-time",
				"description": "RFC3339 UTC time the event was emitted",
			},
			"attempt_id": prop("string", "Reload attempt the event belongs to (watch id for ready)"),
			"message":    prop("string", "Human-readable summary"),
			"url":        prop("string", "Target URL, prefix or DevTools endpoint"),
			"error":      prop("string", "Failure detail or build error payload"),
			"code":       prop("string", "Stable failure code for reload_failed"),
			"hint":       prop("string", "Suggested remediation"),
			"elapsed_ms": prop("integer", "Duration of the step in milliseconds"),
			"pid":        prop("integer", "Launched browser process id"),
			"outcome": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"acknowledged", "peer_closed", "unconfirmed"},
				"description": "How the reload command concluded",
			},
		},
		"required": []string{"type", "schemaVersion", "timestamp"},
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Error",
		"description": "Error that stopped a command",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "error",
			},
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Error code",
				"examples": []string{
					"INVALID_CONFIG",
					"INVALID_FLAGS",
					"PREFLIGHT_FAILED",
					"WATCHER_SETUP_FAILED",
					"WATCHER_EXITED",
					"AVAILABILITY_TIMEOUT",
					"LAUNCH_FAILED",
					"FETCH_ERROR",
				},
			},
			"message": prop("string", "Human-readable error description"),
			"hint":    prop("string", "Suggested remediation"),
		},
		"required": []string{"type", "code", "message"},
	}
}

func targetSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Debuggable Target",
		"description": "One entry from the DevTools target listing",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "target",
			},
			"id":                   prop("string", "Target id"),
			"target_type":          prop("string", "page, iframe, service_worker, ..."),
			"title":                prop("string", "Document title"),
			"url":                  prop("string", "Current URL"),
			"webSocketDebuggerUrl": prop("string", "CDP session endpoint"),
			"match":                prop("boolean", "Whether this target would be reloaded"),
		},
		"required": []string{"type", "match"},
	}
}

func tmuxSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Tmux Session Info",
		"description": "Information about created tmux session",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "tmux",
			},
			"session": prop("string", "Tmux session name"),
			"attach":  prop("string", "Command to attach to the session"),
		},
		"required": []string{"type", "session", "attach"},
	}
}

func versionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Version",
		"description": "Build information",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "version",
			},
			"version":    prop("string", "Release version"),
			"commit":     prop("string", "Source commit"),
			"go_version": prop("string", "Go toolchain used to build"),
			"platform":   prop("string", "GOOS/GOARCH"),
		},
		"required": []string{"type", "version"},
	}
}
