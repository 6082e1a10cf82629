// Package cli implements the tabreload command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/vburojevic/tabreload/internal/config"
)

// Set at build time via -ldflags
var (
	Version = "dev"
	Commit  = "none"
)

// Globals holds global flags and shared state
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
}

// Debug prints a debug line when --verbose is set
func (g *Globals) Debug(format string, args ...interface{}) {
	if g == nil || !g.Verbose || g.Stderr == nil {
		return
	}
	fmt.Fprintf(g.Stderr, "[DEBUG] "+format+"\n", args...)
}

// CLI is the root command
type CLI struct {
	Format  string `short:"f" default:"${config_format}" enum:"auto,text,ndjson" help:"Output format: auto (text on a terminal), text, ndjson"`
	Quiet   bool   `short:"q" help:"Only print warnings and errors"`
	Verbose bool   `short:"v" help:"Write debug logs (JSON) to stderr"`

	Watch      WatchCmd      `cmd:"" help:"Run the build in watch mode and reload the tab after every build"`
	Reload     ReloadCmd     `cmd:"" help:"Reload the target tab once"`
	Targets    TargetsCmd    `cmd:"" help:"List debuggable targets"`
	Launch     LaunchCmd     `cmd:"" help:"Make sure a browser with remote debugging is running"`
	Config     ConfigCmd     `cmd:"" help:"Show or generate configuration"`
	Schema     SchemaCmd     `cmd:"" help:"Print JSON Schema for NDJSON output"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completions"`
	Version    VersionCmd    `cmd:"" help:"Show version"`
}

// NewGlobalsWithConfig builds Globals from parsed flags, falling back to
// config values for booleans that were not set on the command line.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Globals{
		Format:  resolveFormat(c.Format, os.Stdout),
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
}

// resolveFormat turns "auto" into text on a terminal and ndjson otherwise
func resolveFormat(format string, w io.Writer) string {
	if format != "auto" && format != "" {
		return format
	}
	if f, ok := w.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			return "text"
		}
	}
	return "ndjson"
}
