// Package tmux mirrors diagnostics into a detached tmux session.
package tmux

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/GianlucaP106/gotmux/gotmux"
)

// ErrNoPaneAvailable is returned when writing before the session exists
var ErrNoPaneAvailable = errors.New("no tmux pane available")

// Config holds tmux session settings
type Config struct {
	SessionName string
	// Detached creates the session without attaching the current terminal
	Detached bool
}

// commander runs raw tmux commands. *gotmux.Tmux satisfies it.
type commander interface {
	Command(args ...string) (string, error)
}

// Manager owns one tmux session and its first pane
type Manager struct {
	mu     sync.Mutex
	config *Config
	tmux   commander
	pane   string
	owned  bool
}

// IsTmuxAvailable reports whether the tmux binary is on PATH
func IsTmuxAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

var unsafeSessionChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// GenerateSessionName derives a session name from the watched URL
func GenerateSessionName(targetURL string) string {
	name := targetURL
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.Trim(unsafeSessionChars.ReplaceAllString(name, "-"), "-")
	if name == "" {
		return "tabreload"
	}
	return "tabreload-" + name
}

// NewManager connects to the default tmux server
func NewManager(cfg *Config) (*Manager, error) {
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("connect to tmux: %w", err)
	}
	return newManager(cfg, t), nil
}

func newManager(cfg *Config, t commander) *Manager {
	return &Manager{config: cfg, tmux: t}
}

// GetOrCreateSession attaches to an existing session or creates a new one
func (m *Manager) GetOrCreateSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.config.SessionName
	if _, err := m.tmux.Command("has-session", "-t", name); err != nil {
		args := []string{"new-session", "-s", name}
		if m.config.Detached {
			args = append(args, "-d")
		}
		if _, err := m.tmux.Command(args...); err != nil {
			return fmt.Errorf("create tmux session %s: %w", name, err)
		}
		m.owned = true
	}
	m.pane = fmt.Sprintf("%s:0.0", name)
	return nil
}

// AttachCommand is the command a user runs to view the session
func (m *Manager) AttachCommand() string {
	return fmt.Sprintf("tmux attach -t %s", m.config.SessionName)
}

// Cleanup forgets the pane. Sessions stay alive so output can be reviewed
// after tabreload exits.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pane = ""
}

// Kill removes the session if this manager created it
func (m *Manager) Kill() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pane = ""
	if !m.owned {
		return nil
	}
	m.owned = false
	_, err := m.tmux.Command("kill-session", "-t", m.config.SessionName)
	return err
}
