package cli

import (
	"encoding/json"
	"fmt"

	"github.com/vburojevic/tabreload/internal/config"
	"github.com/vburojevic/tabreload/internal/domain"
	"gopkg.in/yaml.v3"
)

// ConfigCmd groups configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file is used"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample tabreload.yaml"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// ConfigOutput is the NDJSON form of `config show`
type ConfigOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	File          string `json:"file,omitempty"`
	*config.Config
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if globals.Format == "ndjson" {
		return json.NewEncoder(globals.Stdout).Encode(ConfigOutput{
			Type:          "config",
			SchemaVersion: domain.SchemaVersion,
			File:          config.ConfigFile(),
			Config:        cfg,
		})
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	if path := config.ConfigFile(); path != "" {
		fmt.Fprintf(globals.Stdout, "# from %s\n", path)
	}
	fmt.Fprint(globals.Stdout, string(data))
	return nil
}

// ConfigPathCmd prints the path of the loaded config file
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return json.NewEncoder(globals.Stdout).Encode(map[string]interface{}{
			"type":          "config_path",
			"schemaVersion": domain.SchemaVersion,
			"path":          path,
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found (using defaults)")
		fmt.Fprintln(globals.Stdout, "Create tabreload.yaml or .tabreloadrc, see `tabreload config generate`")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a commented sample config
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	var node yaml.Node
	if err := node.Encode(config.Default()); err != nil {
		return err
	}
	annotate(&node, map[string]string{
		"format":   "auto, text or ndjson",
		"target":   "the first tab whose URL starts with url_prefix is reloaded",
		"devtools": "endpoint defaults to http://localhost:<port>/json",
		"browser":  "also set by BROWSER_BIN and BROWSER_USER_DATA_DIR",
		"build":    "mode exec scans the watch command output, mode files runs command per change",
		"watch":    "coalesce keeps at most one reload pending while another runs",
	})
	data, err := yaml.Marshal(&node)
	if err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout, "# tabreload configuration file")
	fmt.Fprintln(globals.Stdout, "# Save as tabreload.yaml (project) or ~/.tabreloadrc")
	fmt.Fprint(globals.Stdout, string(data))
	return nil
}

// annotate attaches head comments to top-level keys
func annotate(node *yaml.Node, comments map[string]string) {
	doc := node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if comment, ok := comments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = comment
		}
	}
}
