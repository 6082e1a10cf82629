package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vburojevic/tabreload/internal/orchestrator"
)

// ReloadCmd performs a single reload attempt
type ReloadCmd struct {
	DevToolsFlags `embed:""`
}

// Run executes the reload command
func (c *ReloadCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, globals)
}

func (c *ReloadCmd) run(ctx context.Context, globals *Globals) error {
	dt, err := c.resolve(globals.Config)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error())
	}
	logger, _ := newAgentLogger(globals, "reload")
	defer func() { _ = logger.Sync() }()

	reporter := newReporter(globals, globals.Stdout)
	comps := newComponents(dt, logger, reporter)
	orch := orchestrator.New(comps.ensurer, comps.resolver, comps.commander, orchestrator.Options{
		TargetURL: dt.TargetURLPrefix,
		Reporter:  reporter,
		Logger:    logger,
	})
	// Attempt already reported the failure
	return orch.Attempt(ctx)
}
