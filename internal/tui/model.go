// Package tui renders a live status view of the watch loop.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vburojevic/tabreload/internal/domain"
	"github.com/vburojevic/tabreload/internal/output"
)

const maxRecent = 12

// EventMsg delivers a diagnostic to the model
type EventMsg domain.Event

// Model is the bubbletea model for `tabreload watch --ui`
type Model struct {
	targetURL string
	endpoint  string

	spinner  spinner.Model
	stage    string
	busy     bool
	recent   []domain.Event
	reloads  int
	failures int
	width    int
	quitting bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#01cdfe"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))
)

// New creates a model for the given target prefix and DevTools endpoint
func New(targetURL, endpoint string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		targetURL: targetURL,
		endpoint:  endpoint,
		spinner:   sp,
		stage:     "Waiting for build",
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case EventMsg:
		m = m.apply(domain.Event(msg))
	}
	return m, nil
}

func (m Model) apply(ev domain.Event) Model {
	switch ev.Type {
	case domain.EventBuildStart:
		m.stage, m.busy = "Building", true
	case domain.EventBuildEnd:
		m.stage, m.busy = "Reloading tab", true
	case domain.EventLaunchingBrowser:
		m.stage, m.busy = "Launching browser", true
	case domain.EventReloaded, domain.EventReloadUnconfirmed:
		m.reloads++
		m.stage, m.busy = "Waiting for build", false
	case domain.EventBuildError, domain.EventReloadFailed, domain.EventTargetNotFound, domain.EventTargetNoSocket:
		if ev.Type != domain.EventBuildError {
			m.failures++
		}
		m.stage, m.busy = "Waiting for build", false
	}
	if ev.Type == domain.EventReloadSent {
		return m
	}
	m.recent = append(m.recent, ev)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
	return m
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("tabreload"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s via %s", m.targetURL, m.endpoint)))
	b.WriteString("\n\n")

	indicator := okStyle.Render("●")
	if m.busy {
		indicator = m.spinner.View()
	}
	fmt.Fprintf(&b, "%s %s   %s\n\n", indicator, m.stage,
		mutedStyle.Render(fmt.Sprintf("reloads: %d  failures: %d", m.reloads, m.failures)))

	for _, ev := range m.recent {
		line := output.FormatText(ev)
		if ts := shortTime(ev.Timestamp); ts != "" {
			line = mutedStyle.Render(ts) + " " + line
		}
		switch ev.Type.Severity() {
		case domain.SeverityWarn:
			line = warnStyle.Render(line)
		case domain.SeverityError:
			line = errStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("q to quit"))
	return b.String()
}

// shortTime trims an RFC3339 timestamp to HH:MM:SS
func shortTime(ts string) string {
	i := strings.IndexByte(ts, 'T')
	if i < 0 || len(ts) < i+9 {
		return ""
	}
	return ts[i+1 : i+9]
}

// Sender is satisfied by *tea.Program
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter forwards diagnostics into a running program
func Reporter(p Sender) domain.Reporter {
	return domain.ReporterFunc(func(ev domain.Event) {
		p.Send(EventMsg(ev))
	})
}
