package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/vburojevic/tabreload/internal/domain"
)

// VersionCmd shows version information
type VersionCmd struct{}

// VersionOutput is the NDJSON form of `tabreload version`
type VersionOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	out := VersionOutput{
		Type:          "version",
		SchemaVersion: domain.SchemaVersion,
		Version:       Version,
		Commit:        Commit,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
	}
	if globals.Format == "ndjson" {
		return json.NewEncoder(globals.Stdout).Encode(out)
	}
	fmt.Fprintf(globals.Stdout, "tabreload %s (%s) %s %s\n", out.Version, out.Commit, out.GoVersion, out.Platform)
	return nil
}
