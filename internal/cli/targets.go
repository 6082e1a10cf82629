package cli

import (
	"context"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/vburojevic/tabreload/internal/devtools"
	"github.com/vburojevic/tabreload/internal/domain"
	"github.com/vburojevic/tabreload/internal/output"
)

// TargetsCmd lists debuggable targets and marks the one that would be reloaded
type TargetsCmd struct {
	DevToolsFlags `embed:""`
	All           bool `short:"a" help:"Include non-page targets (workers, extensions)"`
}

// Run executes the targets command
func (c *TargetsCmd) Run(globals *Globals) error {
	dt, err := c.resolve(globals.Config)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error())
	}
	ctx, cancel := context.WithTimeout(context.Background(), dt.ProbeTimeout+5*time.Second)
	defer cancel()

	logger, _ := newAgentLogger(globals, "targets")
	resolver := devtools.NewResolver(dt, devtools.WithLogger(logger))
	targets, err := resolver.List(ctx)
	if err != nil {
		return outputErrorCommon(globals, "FETCH_ERROR", err.Error(), "start the browser with `tabreload launch`")
	}
	// Select over the full listing so the mark matches what reload picks
	selected, selErr := devtools.SelectTarget(targets, dt.TargetURLPrefix)
	isSelected := func(t domain.DebugTarget) bool {
		return selErr == nil && t.ID == selected.ID && t.URL == selected.URL
	}
	if !c.All {
		targets = lo.Filter(targets, func(t domain.DebugTarget, _ int) bool {
			return t.Type == "" || t.Type == "page" || isSelected(t)
		})
	}

	if globals.Format == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, t := range targets {
			if err := w.WriteTarget(t, isSelected(t)); err != nil {
				return err
			}
		}
		return nil
	}

	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("", "Type", "Title", "URL", "Socket")
	for _, t := range targets {
		mark := ""
		if isSelected(t) {
			mark = "*"
		}
		socket := "yes"
		if t.WebSocketDebuggerURL == "" {
			socket = "no"
		}
		if err := table.Append(mark, t.Type, truncate(t.Title, 40), t.URL, socket); err != nil {
			return err
		}
	}
	return table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
