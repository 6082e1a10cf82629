package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vburojevic/tabreload/internal/domain"
	"github.com/vburojevic/tabreload/internal/tui"
)

// runWithUI runs loop with diagnostics routed into a bubbletea program.
// Quitting the UI cancels the loop; the loop ending quits the UI.
func runWithUI(ctx context.Context, cancel context.CancelFunc, globals *Globals, targetURL, endpoint string, loop func(domain.Reporter) error) error {
	model := tui.New(targetURL, endpoint)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(globals.Stdout))

	// Errors from the loop are printed after the alternate screen is gone
	deferred := &domain.Recorder{}
	done := make(chan error, 1)
	go func() {
		err := loop(domain.Tee(tui.Reporter(p), domain.ReporterFunc(func(ev domain.Event) {
			if ev.Type.Severity() == domain.SeverityError {
				deferred.Report(ev)
			}
		})))
		p.Quit()
		done <- err
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-done
		return fmt.Errorf("TUI error: %w", err)
	}
	cancel()
	err := <-done

	reporter := newReporter(globals, globals.Stderr)
	for _, ev := range deferred.Events() {
		reporter.Report(ev)
	}
	return err
}
