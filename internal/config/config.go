package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/vburojevic/tabreload/internal/devtools"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format" yaml:"format" json:"format"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet" json:"quiet"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Target   TargetConfig   `mapstructure:"target" yaml:"target" json:"target"`
	DevTools DevToolsConfig `mapstructure:"devtools" yaml:"devtools" json:"devtools"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser" json:"browser"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build" json:"build"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// TargetConfig selects the tab to reload
type TargetConfig struct {
	URLPrefix string `mapstructure:"url_prefix" yaml:"url_prefix" json:"url_prefix"`
}

// DevToolsConfig holds the remote debugging endpoint and its timeouts.
// Durations are Go duration strings such as "200ms".
type DevToolsConfig struct {
	Endpoint            string `mapstructure:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Port                int    `mapstructure:"port" yaml:"port" json:"port"`
	PollInterval        string `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	AvailabilityTimeout string `mapstructure:"availability_timeout" yaml:"availability_timeout" json:"availability_timeout"`
	ProbeTimeout        string `mapstructure:"probe_timeout" yaml:"probe_timeout" json:"probe_timeout"`
	SocketOpenTimeout   string `mapstructure:"socket_open_timeout" yaml:"socket_open_timeout" json:"socket_open_timeout"`
	CommandAckTimeout   string `mapstructure:"command_ack_timeout" yaml:"command_ack_timeout" json:"command_ack_timeout"`
}

// BrowserConfig controls how the browser is launched when debugging is off
type BrowserConfig struct {
	Bin         string   `mapstructure:"bin" yaml:"bin,omitempty" json:"bin,omitempty"`
	UserDataDir string   `mapstructure:"user_data_dir" yaml:"user_data_dir" json:"user_data_dir"`
	ExtraArgs   []string `mapstructure:"extra_args" yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

// BuildConfig describes where build lifecycle events come from
type BuildConfig struct {
	// Mode is "exec" (scan a watch process) or "files" (run a build per change)
	Mode         string   `mapstructure:"mode" yaml:"mode" json:"mode"`
	Command      []string `mapstructure:"command" yaml:"command" json:"command"`
	Dir          string   `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
	StartPattern string   `mapstructure:"start_pattern" yaml:"start_pattern,omitempty" json:"start_pattern,omitempty"`
	EndPattern   string   `mapstructure:"end_pattern" yaml:"end_pattern,omitempty" json:"end_pattern,omitempty"`
	ErrorPattern string   `mapstructure:"error_pattern" yaml:"error_pattern,omitempty" json:"error_pattern,omitempty"`
	Paths        []string `mapstructure:"paths" yaml:"paths,omitempty" json:"paths,omitempty"`
	Ignore       []string `mapstructure:"ignore" yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Debounce     string   `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

// WatchConfig holds watch loop defaults
type WatchConfig struct {
	Coalesce  bool `mapstructure:"coalesce" yaml:"coalesce" json:"coalesce"`
	MaxBuilds int  `mapstructure:"max_builds" yaml:"max_builds" json:"max_builds"`
	Preflight bool `mapstructure:"preflight" yaml:"preflight" json:"preflight"`
}

// Build modes
const (
	ModeExec  = "exec"
	ModeFiles = "files"
)

// Default returns a Config with default values
func Default() *Config {
	dt := devtools.DefaultConfig()
	return &Config{
		Format:  "auto",
		Quiet:   false,
		Verbose: false,
		Target: TargetConfig{
			URLPrefix: dt.TargetURLPrefix,
		},
		DevTools: DevToolsConfig{
			Port:                dt.Port,
			PollInterval:        dt.PollInterval.String(),
			AvailabilityTimeout: dt.AvailabilityTimeout.String(),
			ProbeTimeout:        dt.ProbeTimeout.String(),
			SocketOpenTimeout:   dt.SocketOpenTimeout.String(),
			CommandAckTimeout:   dt.CommandAckTimeout.String(),
		},
		Browser: BrowserConfig{
			UserDataDir: dt.UserDataDir,
		},
		Build: BuildConfig{
			Mode:     ModeExec,
			Command:  []string{"npx", "vite", "build", "--watch"},
			Debounce: "150ms",
		},
		Watch: WatchConfig{
			Preflight: true,
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("target.url_prefix", cfg.Target.URLPrefix)
	v.SetDefault("devtools.port", cfg.DevTools.Port)
	v.SetDefault("devtools.poll_interval", cfg.DevTools.PollInterval)
	v.SetDefault("devtools.availability_timeout", cfg.DevTools.AvailabilityTimeout)
	v.SetDefault("devtools.probe_timeout", cfg.DevTools.ProbeTimeout)
	v.SetDefault("devtools.socket_open_timeout", cfg.DevTools.SocketOpenTimeout)
	v.SetDefault("devtools.command_ack_timeout", cfg.DevTools.CommandAckTimeout)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("build.mode", cfg.Build.Mode)
	v.SetDefault("build.command", cfg.Build.Command)
	v.SetDefault("build.debounce", cfg.Build.Debounce)
	v.SetDefault("watch.preflight", cfg.Watch.Preflight)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TABRELOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Unprefixed names shared with other browser tooling
	_ = v.BindEnv("browser.bin", "TABRELOAD_BROWSER_BIN", "BROWSER_BIN", "CHROME_BIN")
	_ = v.BindEnv("browser.user_data_dir", "TABRELOAD_BROWSER_USER_DATA_DIR", "BROWSER_USER_DATA_DIR", "CHROME_USER_DATA_DIR")
	_ = v.BindEnv("target.url_prefix", "TABRELOAD_TARGET_URL_PREFIX", "TABRELOAD_URL")
	_ = v.BindEnv("devtools.endpoint", "TABRELOAD_DEVTOOLS_ENDPOINT")
	_ = v.BindEnv("devtools.port", "TABRELOAD_DEVTOOLS_PORT")
	_ = v.BindEnv("build.dir", "TABRELOAD_BUILD_DIR")
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigName("tabreload")
	// Search order, first hit wins
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "tabreload"))
	}
	v.AddConfigPath("/etc/tabreload/")

	bindEnv(v)
	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// Fall back to .tabreloadrc in cwd or home
		if path := findRC(); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file. Environment
// variables still override file values.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)
	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findRC() string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, ".tabreloadrc")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("tabreload")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "tabreload"))
	}
	v.AddConfigPath("/etc/tabreload/")

	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}
	return findRC()
}

// DevToolsConfig resolves the immutable settings shared by the devtools
// components.
func (c *Config) DevToolsConfig() (devtools.Config, error) {
	out := devtools.Config{
		TargetURLPrefix: c.Target.URLPrefix,
		Endpoint:        c.DevTools.Endpoint,
		Port:            c.DevTools.Port,
		BrowserBin:      c.Browser.Bin,
		UserDataDir:     c.Browser.UserDataDir,
		ExtraArgs:       c.Browser.ExtraArgs,
	}
	if out.Port < 0 || out.Port > 65535 {
		return devtools.Config{}, fmt.Errorf("devtools.port %d out of range", out.Port)
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"devtools.poll_interval", c.DevTools.PollInterval, &out.PollInterval},
		{"devtools.availability_timeout", c.DevTools.AvailabilityTimeout, &out.AvailabilityTimeout},
		{"devtools.probe_timeout", c.DevTools.ProbeTimeout, &out.ProbeTimeout},
		{"devtools.socket_open_timeout", c.DevTools.SocketOpenTimeout, &out.SocketOpenTimeout},
		{"devtools.command_ack_timeout", c.DevTools.CommandAckTimeout, &out.CommandAckTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return devtools.Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if parsed <= 0 {
			return devtools.Config{}, fmt.Errorf("invalid %s: must be positive", d.key)
		}
		*d.dst = parsed
	}
	return out.WithDefaults(), nil
}

// DebounceDuration parses build.debounce
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Build.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Build.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid build.debounce: %w", err)
	}
	return d, nil
}
