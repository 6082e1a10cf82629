package devtools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const infoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleExecutable</key>
	<string>Chromium Canary</string>
	<key>CFBundleName</key>
	<string>Chromium</string>
</dict>
</plist>
`

func writeBundle(t *testing.T) string {
	t.Helper()
	app := filepath.Join(t.TempDir(), "Chromium.app")
	require.NoError(t, os.MkdirAll(filepath.Join(app, "Contents", "MacOS"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(app, "Contents", "Info.plist"), []byte(infoPlist), 0o644))
	return app
}

func testLauncher(goos string) *Launcher {
	l := NewLauncher()
	l.goos = goos
	l.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	return l
}

func TestBrowserArgs(t *testing.T) {
	args := BrowserArgs(Config{Port: 9333, UserDataDir: "/tmp/profile", ExtraArgs: []string{"--auto-open-devtools-for-tabs"}})
	assert.Equal(t, []string{
		"--remote-debugging-port=9333",
		"--user-data-dir=/tmp/profile",
		"--no-first-run",
		"--no-default-browser-check",
		"--auto-open-devtools-for-tabs",
	}, args)
}

func TestLauncherCommand(t *testing.T) {
	cfg := Config{UserDataDir: "/tmp/profile"}

	t.Run("darwin without override opens a new app instance", func(t *testing.T) {
		name, args, err := testLauncher("darwin").Command(cfg)
		require.NoError(t, err)
		assert.Equal(t, "open", name)
		require.GreaterOrEqual(t, len(args), 4)
		assert.Equal(t, []string{"-na", "Google Chrome", "--args"}, args[:3])
		assert.Contains(t, args, "--remote-debugging-port=9222")
		assert.Contains(t, args, "--user-data-dir=/tmp/profile")
	})

	t.Run("darwin with override spawns the binary directly", func(t *testing.T) {
		cfg := cfg
		cfg.BrowserBin = "/opt/chrome/chrome"
		name, args, err := testLauncher("darwin").Command(cfg)
		require.NoError(t, err)
		assert.Equal(t, "/opt/chrome/chrome", name)
		assert.Equal(t, "--remote-debugging-port=9222", args[0])
	})

	t.Run("app bundle override resolves CFBundleExecutable", func(t *testing.T) {
		app := writeBundle(t)
		cfg := cfg
		cfg.BrowserBin = app
		name, _, err := testLauncher("darwin").Command(cfg)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(app, "Contents", "MacOS", "Chromium Canary"), name)
	})

	t.Run("broken app bundle is an error", func(t *testing.T) {
		cfg := cfg
		cfg.BrowserBin = filepath.Join(t.TempDir(), "Missing.app")
		_, _, err := testLauncher("darwin").Command(cfg)
		assert.Error(t, err)
	})

	t.Run("linux prefers a binary on PATH", func(t *testing.T) {
		l := testLauncher("linux")
		l.lookPath = func(name string) (string, error) {
			if name == "chromium" {
				return "/usr/bin/chromium", nil
			}
			return "", errors.New("not found")
		}
		name, _, err := l.Command(cfg)
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/chromium", name)
	})

	t.Run("linux falls back to google-chrome", func(t *testing.T) {
		name, _, err := testLauncher("linux").Command(cfg)
		require.NoError(t, err)
		assert.Equal(t, "google-chrome", name)
	})

	t.Run("windows uses the standard install path", func(t *testing.T) {
		name, _, err := testLauncher("windows").Command(cfg)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, `chrome.exe`))
	})
}

func TestBundleName(t *testing.T) {
	assert.Equal(t, "Chromium", bundleName(writeBundle(t)))
	assert.Equal(t, "Google Chrome", bundleName("/Applications/Google Chrome.app/"))

	info, err := readBundleInfo(writeBundle(t))
	require.NoError(t, err)
	assert.Equal(t, "Chromium", info.Name)
	assert.Equal(t, "Chromium Canary", info.Executable)
}

func TestLaunchWithStubBrowser(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "args.txt")
	bin := filepath.Join(dir, "chrome")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > \"$STUB_ARGS_OUT.tmp\"\nmv \"$STUB_ARGS_OUT.tmp\" \"$STUB_ARGS_OUT\"\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	t.Setenv("STUB_ARGS_OUT", out)

	profile := filepath.Join(dir, "profile")
	handle, err := NewLauncher().Launch(Config{BrowserBin: bin, UserDataDir: profile})
	require.NoError(t, err)
	assert.Positive(t, handle.PID)
	assert.Equal(t, bin, handle.Path)

	require.Eventually(t, func() bool {
		_, err := os.Stat(out)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"--remote-debugging-port=9222",
		"--user-data-dir=" + profile,
		"--no-first-run",
		"--no-default-browser-check",
	}, lines)

	info, err := os.Stat(profile)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLaunchMissingBinary(t *testing.T) {
	_, err := NewLauncher().Launch(Config{BrowserBin: filepath.Join(t.TempDir(), "nope"), UserDataDir: t.TempDir()})
	assert.Error(t, err)
}
