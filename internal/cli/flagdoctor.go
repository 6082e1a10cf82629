package cli

import "github.com/vburojevic/tabreload/internal/config"

// validateWatchFlags centralizes flag combinations that cannot work together.
func validateWatchFlags(globals *Globals, c *WatchCmd) error {
	if c.UI && c.Tmux {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--ui cannot be combined with --tmux", "pick one of --ui or --tmux")
	}
	if c.UI && globals != nil && globals.Format == "ndjson" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--ui requires a terminal, not ndjson output", "drop --ui or use --format text")
	}
	if c.MaxBuilds < 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--max-builds must not be negative")
	}
	if c.Mode != "" && c.Mode != config.ModeExec && c.Mode != config.ModeFiles {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--mode must be exec or files", "use --mode files to build on file changes")
	}
	if len(c.Path) > 0 && c.Mode == config.ModeExec {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--path only applies to files mode", "add --mode files or drop --path")
	}
	return nil
}
