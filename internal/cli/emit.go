package cli

import (
	"io"

	"github.com/vburojevic/tabreload/internal/domain"
	"github.com/vburojevic/tabreload/internal/output"
)

// newReporter picks the diagnostic writer for the output format. Quiet mode
// drops informational events in both formats.
func newReporter(globals *Globals, w io.Writer) domain.Reporter {
	var r domain.Reporter
	if globals.Format == "ndjson" {
		r = output.NewNDJSONWriter(w)
	} else {
		return output.NewTextWriter(w, globals.Quiet)
	}
	if !globals.Quiet {
		return r
	}
	return domain.ReporterFunc(func(ev domain.Event) {
		if ev.Type.Severity() != domain.SeverityInfo {
			r.Report(ev)
		}
	})
}
