package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/vburojevic/tabreload/internal/domain"
)

const textPrefix = "[tabreload]"

type textStyles struct {
	prefix lipgloss.Style
	info   lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	muted  lipgloss.Style
}

func newTextStyles(r *lipgloss.Renderer) textStyles {
	return textStyles{
		prefix: r.NewStyle().Foreground(lipgloss.Color("#01cdfe")).Bold(true),
		info:   r.NewStyle(),
		warn:   r.NewStyle().Foreground(lipgloss.Color("#ffb86c")),
		err:    r.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#9ca3d8")),
	}
}

// TextWriter prints one human-readable line per event. Colors are applied
// only when the destination is a terminal.
type TextWriter struct {
	mu     sync.Mutex
	w      io.Writer
	styles textStyles
	quiet  bool
}

// NewTextWriter creates a text writer. In quiet mode only warnings and
// errors are printed.
func NewTextWriter(w io.Writer, quiet bool) *TextWriter {
	return &TextWriter{
		w:      w,
		styles: newTextStyles(lipgloss.NewRenderer(w)),
		quiet:  quiet,
	}
}

// Report implements domain.Reporter
func (t *TextWriter) Report(ev domain.Event) {
	sev := ev.Type.Severity()
	if t.quiet && sev == domain.SeverityInfo {
		return
	}
	line := t.styles.prefix.Render(textPrefix) + " " + t.style(sev).Render(FormatText(ev))
	if ev.Hint != "" {
		line += " " + t.styles.muted.Render("(hint: "+ev.Hint+")")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

func (t *TextWriter) style(sev domain.Severity) lipgloss.Style {
	switch sev {
	case domain.SeverityWarn:
		return t.styles.warn
	case domain.SeverityError:
		return t.styles.err
	default:
		return t.styles.info
	}
}

// FormatText renders an event without styling, e.g.
// "Target tab not found: http://localhost:5173/".
func FormatText(ev domain.Event) string {
	var b strings.Builder
	b.WriteString(ev.Message)
	if ev.URL != "" {
		b.WriteString(": ")
		b.WriteString(ev.URL)
	}
	if ev.Error != "" {
		if ev.URL == "" {
			b.WriteString(": ")
		} else {
			b.WriteString(" ")
		}
		b.WriteString(ev.Error)
	}
	if ev.Code != "" && ev.Type == domain.EventError {
		return fmt.Sprintf("Error [%s]: %s", ev.Code, b.String())
	}
	if ev.ElapsedMs > 0 {
		fmt.Fprintf(&b, " (%dms)", ev.ElapsedMs)
	}
	return b.String()
}
