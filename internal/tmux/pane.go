package tmux

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ClearPane clears the pane content and scrollback history
func (m *Manager) ClearPane() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pane == "" {
		return ErrNoPaneAvailable
	}

	if _, err := m.tmux.Command("send-keys", "-t", m.pane, "-R"); err != nil {
		return fmt.Errorf("failed to reset terminal: %w", err)
	}
	if _, err := m.tmux.Command("clear-history", "-t", m.pane); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if _, err := m.tmux.Command("send-keys", "-t", m.pane, "clear", "Enter"); err != nil {
		return fmt.Errorf("failed to clear screen: %w", err)
	}
	return nil
}

// ClearPaneWithBanner clears the pane and displays a header for this run
func (m *Manager) ClearPaneWithBanner(message string) error {
	if err := m.ClearPane(); err != nil {
		return err
	}

	banner := fmt.Sprintf(
		"═══════════════════════════════════════════════════════════\n"+
			"  tabreload - %s\n"+
			"  Session: %s | Started: %s\n"+
			"═══════════════════════════════════════════════════════════",
		message,
		m.config.SessionName,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	return m.WriteLines(strings.Split(banner, "\n"))
}

// WriteLine writes a single line to the tmux pane using echo
func (m *Manager) WriteLine(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pane == "" {
		return ErrNoPaneAvailable
	}

	_, err := m.tmux.Command("send-keys", "-t", m.pane, fmt.Sprintf("echo '%s'", escapeTmuxString(line)), "Enter")
	return err
}

// WriteLines writes multiple lines in order
func (m *Manager) WriteLines(lines []string) error {
	for _, line := range lines {
		if err := m.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// escapeTmuxString quotes s for the single-quoted echo sent to the pane
func escapeTmuxString(s string) string {
	return strings.ReplaceAll(s, "'", `'"'"'`)
}

type lineWriter interface {
	WriteLine(line string) error
}

// Writer implements io.Writer on top of a pane, one send-keys per line
type Writer struct {
	out    lineWriter
	buffer strings.Builder
}

// NewWriter creates a new writer that streams to the tmux pane
func NewWriter(manager *Manager) *Writer {
	return &Writer{out: manager}
}

// Write buffers partial lines and forwards complete ones
func (w *Writer) Write(p []byte) (int, error) {
	w.buffer.Write(p)

	content := w.buffer.String()
	lines := strings.Split(content, "\n")
	w.buffer.Reset()
	if !strings.HasSuffix(content, "\n") {
		w.buffer.WriteString(lines[len(lines)-1])
	}
	lines = lines[:len(lines)-1]

	for _, line := range lines {
		if line == "" {
			continue
		}
		if err := w.out.WriteLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes any remaining buffered content
func (w *Writer) Flush() error {
	if w.buffer.Len() == 0 {
		return nil
	}
	err := w.out.WriteLine(w.buffer.String())
	w.buffer.Reset()
	return err
}

var _ io.Writer = (*Writer)(nil)
