package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/vburojevic/tabreload/internal/build"
	"github.com/vburojevic/tabreload/internal/config"
	"github.com/vburojevic/tabreload/internal/domain"
	"github.com/vburojevic/tabreload/internal/orchestrator"
	"github.com/vburojevic/tabreload/internal/output"
	"github.com/vburojevic/tabreload/internal/tmux"
	"go.uber.org/zap"
)

// WatchCmd runs the build in watch mode and reloads the tab after every build
type WatchCmd struct {
	DevToolsFlags `embed:""`

	Mode        string   `short:"m" help:"Build event source: exec (scan watch output) or files (run the build per change)"`
	Dir         string   `short:"C" help:"Working directory for the build command"`
	Path        []string `short:"p" help:"Path to watch in files mode (repeatable)"`
	Coalesce    bool     `help:"Collapse overlapping reloads into at most one pending reload"`
	MaxBuilds   int      `help:"Exit after N completed builds (0 = until interrupted)"`
	NoPreflight bool     `help:"Do not make debugging available before the first build"`
	UI          bool     `help:"Show an interactive status view"`
	Tmux        bool     `help:"Mirror diagnostics into a tmux session"`
	Session     string   `help:"Custom tmux session name (default: tabreload-<url>)"`

	Command []string `arg:"" optional:"" passthrough:"" help:"Build command, after -- (default: npx vite build --watch)"`
}

// TmuxOutput announces the session diagnostics are mirrored to
type TmuxOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Session       string `json:"session"`
	Attach        string `json:"attach"`
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return c.run(ctx, cancel, globals)
}

func (c *WatchCmd) run(ctx context.Context, cancel context.CancelFunc, globals *Globals) error {
	if err := validateWatchFlags(globals, c); err != nil {
		return err
	}
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	dt, err := c.resolve(cfg)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error(), "check the devtools section of tabreload.yaml")
	}
	logger, watchID := newAgentLogger(globals, "watch")
	defer func() { _ = logger.Sync() }()

	// Determine output destination
	var outputWriter io.Writer = globals.Stdout
	var tmuxMgr *tmux.Manager
	if c.Tmux {
		tmuxMgr = c.openTmux(globals, dt.TargetURLPrefix)
		if tmuxMgr != nil {
			w := tmux.NewWriter(tmuxMgr)
			defer func() { _ = w.Flush() }()
			outputWriter = w
			defer tmuxMgr.Cleanup()
		}
	}

	var buildOutput io.Writer
	if globals.Format == "text" && !globals.Quiet && !c.UI && tmuxMgr == nil {
		buildOutput = globals.Stderr
	}
	source, err := c.source(cfg, logger, buildOutput)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error())
	}

	loop := func(reporter domain.Reporter) error {
		comps := newComponents(dt, logger, reporter)
		orch := orchestrator.New(comps.ensurer, comps.resolver, comps.commander, orchestrator.Options{
			TargetURL: dt.TargetURLPrefix,
			Coalesce:  c.Coalesce || cfg.Watch.Coalesce,
			MaxBuilds: c.maxBuilds(cfg),
			Reporter:  reporter,
			Logger:    logger,
		})
		return c.watch(ctx, globals, orch, source, reporter, dt.TargetURLPrefix, watchID)
	}

	if c.UI {
		return runWithUI(ctx, cancel, globals, dt.TargetURLPrefix, dt.Endpoint, loop)
	}
	return loop(newReporter(globals, outputWriter))
}

func (c *WatchCmd) watch(ctx context.Context, globals *Globals, orch *orchestrator.Orchestrator, source build.Source, reporter domain.Reporter, targetURL, watchID string) error {
	if c.preflight(globals.Config) {
		if err := orch.Preflight(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return outputErrorCommon(globals, "PREFLIGHT_FAILED", err.Error(), hintFor(err))
		}
	}

	sub, err := source.Subscribe(ctx)
	if err != nil {
		return outputErrorCommon(globals, orchestrator.ErrorCode(err), err.Error(), "check the build command and --dir")
	}
	defer sub.Close()

	ready := domain.NewEvent(domain.EventReady, "Watching build, reloading")
	ready.URL = targetURL
	ready.AttemptID = watchID
	reporter.Report(ready)

	err = orch.Run(ctx, sub)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, build.ErrWatcherExited):
		return outputErrorCommon(globals, "WATCHER_EXITED", err.Error(), "the build command stopped; run it directly to see why")
	default:
		return outputErrorCommon(globals, orchestrator.ErrorCode(err), err.Error())
	}
}

func (c *WatchCmd) openTmux(globals *Globals, targetURL string) *tmux.Manager {
	if !tmux.IsTmuxAvailable() {
		globals.Debug("tmux not found on PATH, writing to stdout")
		return nil
	}
	sessionName := c.Session
	if sessionName == "" {
		sessionName = tmux.GenerateSessionName(targetURL)
	}
	mgr, err := tmux.NewManager(&tmux.Config{SessionName: sessionName, Detached: true})
	if err != nil {
		globals.Debug("tmux unavailable: %v", err)
		return nil
	}
	if err := mgr.GetOrCreateSession(); err != nil {
		globals.Debug("tmux session: %v", err)
		return nil
	}
	_ = mgr.ClearPaneWithBanner(fmt.Sprintf("Watching: %s", targetURL))

	if globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).Write(TmuxOutput{
			Type:          "tmux",
			SchemaVersion: domain.SchemaVersion,
			Session:       sessionName,
			Attach:        mgr.AttachCommand(),
		})
	} else {
		fmt.Fprintf(globals.Stdout, "Tmux session: %s\n", sessionName)
		fmt.Fprintf(globals.Stdout, "Attach with: %s\n", mgr.AttachCommand())
	}
	return mgr
}

// source builds the event source for the selected mode
func (c *WatchCmd) source(cfg *config.Config, logger *zap.Logger, out io.Writer) (build.Source, error) {
	mode := c.Mode
	if mode == "" {
		mode = cfg.Build.Mode
	}
	dir := c.Dir
	if dir == "" {
		dir = cfg.Build.Dir
	}
	command := c.command()
	if len(command) == 0 {
		command = cfg.Build.Command
	}

	switch mode {
	case config.ModeExec, "":
		patterns, err := build.CompilePatterns(cfg.Build.StartPattern, cfg.Build.EndPattern, cfg.Build.ErrorPattern)
		if err != nil {
			return nil, err
		}
		return &build.ExecSource{
			Command:  command,
			Dir:      dir,
			Patterns: patterns,
			Logger:   logger.Named("build"),
			Output:   out,
		}, nil
	case config.ModeFiles:
		debounce, err := cfg.DebounceDuration()
		if err != nil {
			return nil, err
		}
		// The watch-mode default never exits, so files mode swaps in a one-shot build
		if len(c.command()) == 0 && slices.Equal(command, build.DefaultCommand) {
			command = build.DefaultFilesCommand
		}
		paths := c.Path
		if len(paths) == 0 {
			paths = cfg.Build.Paths
		}
		return &build.FileSource{
			Paths:    paths,
			Ignore:   cfg.Build.Ignore,
			Debounce: debounce,
			Command:  command,
			Dir:      dir,
			Logger:   logger.Named("build"),
			Output:   out,
		}, nil
	default:
		return nil, fmt.Errorf("unknown build mode %q (want exec or files)", mode)
	}
}

// command strips the leading "--" kong keeps for passthrough args
func (c *WatchCmd) command() []string {
	if len(c.Command) > 0 && c.Command[0] == "--" {
		return c.Command[1:]
	}
	return c.Command
}

func (c *WatchCmd) maxBuilds(cfg *config.Config) int {
	if c.MaxBuilds > 0 {
		return c.MaxBuilds
	}
	return cfg.Watch.MaxBuilds
}

func (c *WatchCmd) preflight(cfg *config.Config) bool {
	if c.NoPreflight {
		return false
	}
	return cfg == nil || cfg.Watch.Preflight
}

