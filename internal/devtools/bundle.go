package devtools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// DefaultDarwinApp is the standard Chrome install location on macOS
const DefaultDarwinApp = "/Applications/Google Chrome.app"

type bundleInfo struct {
	Name       string `plist:"CFBundleName"`
	Executable string `plist:"CFBundleExecutable"`
}

func isAppBundle(path string) bool {
	return strings.HasSuffix(strings.TrimRight(path, "/"), ".app")
}

func readBundleInfo(app string) (bundleInfo, error) {
	var info bundleInfo
	data, err := os.ReadFile(filepath.Join(app, "Contents", "Info.plist"))
	if err != nil {
		return info, err
	}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("parse Info.plist: %w", err)
	}
	return info, nil
}

// bundleExecutable resolves the binary inside an .app bundle
func bundleExecutable(app string) (string, error) {
	app = strings.TrimRight(app, "/")
	info, err := readBundleInfo(app)
	if err != nil {
		return "", fmt.Errorf("read bundle %s: %w", app, err)
	}
	if info.Executable == "" {
		return "", fmt.Errorf("bundle %s has no CFBundleExecutable", app)
	}
	return filepath.Join(app, "Contents", "MacOS", info.Executable), nil
}

// bundleName returns the name `open -a` understands for an app bundle.
// LaunchServices matches on the bundle's file name, not CFBundleName.
func bundleName(app string) string {
	return strings.TrimSuffix(filepath.Base(strings.TrimRight(app, "/")), ".app")
}
