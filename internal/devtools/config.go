package devtools

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultPort is the remote debugging port the browser is launched with
const DefaultPort = 9222

// Defaults mirror the behaviour of a plain `chrome --remote-debugging-port`
// setup on the local machine.
const (
	DefaultTargetURLPrefix     = "http://localhost:5173/"
	DefaultPollInterval        = 200 * time.Millisecond
	DefaultAvailabilityTimeout = 15 * time.Second
	DefaultProbeTimeout        = time.Second
	DefaultSocketOpenTimeout   = 5 * time.Second
	DefaultCommandAckTimeout   = 5 * time.Second
)

// Config is resolved once at startup and passed by value to every component.
type Config struct {
	TargetURLPrefix     string
	Endpoint            string
	Port                int
	PollInterval        time.Duration
	AvailabilityTimeout time.Duration
	ProbeTimeout        time.Duration
	SocketOpenTimeout   time.Duration
	CommandAckTimeout   time.Duration

	// BrowserBin is an explicit binary or .app bundle override. Empty means
	// the platform default, which on darwin launches through `open -na`.
	BrowserBin  string
	UserDataDir string
	ExtraArgs   []string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		TargetURLPrefix:     DefaultTargetURLPrefix,
		Endpoint:            DefaultEndpoint(DefaultPort),
		Port:                DefaultPort,
		PollInterval:        DefaultPollInterval,
		AvailabilityTimeout: DefaultAvailabilityTimeout,
		ProbeTimeout:        DefaultProbeTimeout,
		SocketOpenTimeout:   DefaultSocketOpenTimeout,
		CommandAckTimeout:   DefaultCommandAckTimeout,
		UserDataDir:         DefaultUserDataDir(),
	}
}

// DefaultEndpoint returns the target listing URL for a local debugging port
func DefaultEndpoint(port int) string {
	return "http://localhost:" + strconv.Itoa(port) + "/json"
}

// DefaultUserDataDir is the dedicated profile used for launched browsers
func DefaultUserDataDir() string {
	return filepath.Join(os.TempDir(), "chrome-remote-debug")
}

// WithDefaults fills zero values so a partially populated Config is usable
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint(c.Port)
	}
	if c.TargetURLPrefix == "" {
		c.TargetURLPrefix = d.TargetURLPrefix
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.AvailabilityTimeout <= 0 {
		c.AvailabilityTimeout = d.AvailabilityTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.SocketOpenTimeout <= 0 {
		c.SocketOpenTimeout = d.SocketOpenTimeout
	}
	if c.CommandAckTimeout <= 0 {
		c.CommandAckTimeout = d.CommandAckTimeout
	}
	if c.UserDataDir == "" {
		c.UserDataDir = d.UserDataDir
	}
	return c
}
