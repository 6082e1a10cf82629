package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vburojevic/tabreload/internal/domain"
	"github.com/vburojevic/tabreload/internal/orchestrator"
)

// LaunchCmd makes sure a browser with remote debugging is reachable
type LaunchCmd struct {
	DevToolsFlags `embed:""`
}

// Run executes the launch command
func (c *LaunchCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, globals)
}

func (c *LaunchCmd) run(ctx context.Context, globals *Globals) error {
	dt, err := c.resolve(globals.Config)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error())
	}
	logger, _ := newAgentLogger(globals, "launch")
	defer func() { _ = logger.Sync() }()

	reporter := newReporter(globals, globals.Stdout)
	comps := newComponents(dt, logger, reporter)
	result, err := comps.ensurer.Ensure(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return outputErrorCommon(globals, orchestrator.ErrorCode(err), err.Error(), hintFor(err))
	}
	if !result.Launched {
		globals.Debug("DevTools already available at %s", dt.Endpoint)
		ev := domain.NewEvent(domain.EventDebuggingAvailable, "DevTools is already available")
		ev.URL = dt.Endpoint
		reporter.Report(ev)
	}
	return nil
}
