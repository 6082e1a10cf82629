package devtools

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ProcessHandle describes a launched browser. It is kept for logging only;
// nothing waits on or signals the process.
type ProcessHandle struct {
	PID       int
	Path      string
	Args      []string
	StartedAt time.Time
}

// Launcher starts a browser configured for remote debugging
type Launcher struct {
	goos     string
	lookPath func(string) (string, error)
	logger   *zap.Logger
}

// NewLauncher creates a launcher for the running platform
func NewLauncher(opts ...Option) *Launcher {
	o := buildOptions(opts)
	return &Launcher{goos: runtime.GOOS, lookPath: exec.LookPath, logger: o.logger}
}

// BrowserArgs returns the flags every launch carries
func BrowserArgs(cfg Config) []string {
	cfg = cfg.WithDefaults()
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(cfg.Port),
		"--user-data-dir=" + cfg.UserDataDir,
		"--no-first-run",
		"--no-default-browser-check",
	}
	return append(args, cfg.ExtraArgs...)
}

// Command resolves the program and arguments Launch would run
func (l *Launcher) Command(cfg Config) (string, []string, error) {
	args := BrowserArgs(cfg)

	bin := cfg.BrowserBin
	if bin == "" && l.goos == "darwin" {
		// A direct exec can be absorbed by a running instance, dropping
		// the debugging flags, so ask LaunchServices for a new instance.
		openArgs := append([]string{"-na", bundleName(DefaultDarwinApp), "--args"}, args...)
		return "open", openArgs, nil
	}
	if bin == "" {
		bin = l.defaultBinary()
	}
	if isAppBundle(bin) {
		exe, err := bundleExecutable(bin)
		if err != nil {
			return "", nil, err
		}
		bin = exe
	}
	return bin, args, nil
}

func (l *Launcher) defaultBinary() string {
	switch l.goos {
	case "darwin":
		return DefaultDarwinApp + "/Contents/MacOS/Google Chrome"
	case "windows":
		return `C:\Program Files\Google\Chrome\Application\chrome.exe`
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := l.lookPath(name); err == nil {
			return path
		}
	}
	return "google-chrome"
}

// Launch spawns the browser detached from this process
func (l *Launcher) Launch(cfg Config) (ProcessHandle, error) {
	cfg = cfg.WithDefaults()
	name, args, err := l.Command(cfg)
	if err != nil {
		return ProcessHandle{}, err
	}
	if err := os.MkdirAll(cfg.UserDataDir, 0o755); err != nil {
		l.logger.Debug("create user data dir", zap.String("dir", cfg.UserDataDir), zap.Error(err))
	}

	cmd := exec.Command(name, args...)
	// nil stdio is wired to the null device
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return ProcessHandle{}, fmt.Errorf("start %s: %w", name, err)
	}
	handle := ProcessHandle{
		PID:       cmd.Process.Pid,
		Path:      name,
		Args:      args,
		StartedAt: time.Now(),
	}
	l.logger.Debug("browser launched", zap.Int("pid", handle.PID), zap.String("path", name), zap.Strings("args", args))

	// Reap in the background so the child never becomes a zombie
	go func() { _ = cmd.Wait() }()
	return handle, nil
}
