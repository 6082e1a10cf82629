package cli

import (
	"github.com/vburojevic/tabreload/internal/config"
	"github.com/vburojevic/tabreload/internal/devtools"
	"github.com/vburojevic/tabreload/internal/domain"
	"go.uber.org/zap"
)

// DevToolsFlags are shared by every command that talks to the browser.
// Empty values fall back to the configuration.
type DevToolsFlags struct {
	URL         string   `short:"u" default:"${config_url}" help:"URL prefix of the tab to reload"`
	Endpoint    string   `help:"DevTools target listing URL (default: http://localhost:<port>/json)"`
	Port        int      `help:"Remote debugging port used when launching the browser" default:"${config_port}"`
	BrowserBin  string   `name:"browser-bin" help:"Browser binary or .app bundle to launch"`
	UserDataDir string   `name:"user-data-dir" help:"Profile directory for the launched browser"`
	BrowserArg  []string `name:"browser-arg" help:"Extra browser argument (repeatable)"`
}

// resolve applies the flags on top of the loaded configuration
func (f DevToolsFlags) resolve(cfg *config.Config) (devtools.Config, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg
	if f.URL != "" {
		c.Target.URLPrefix = f.URL
	}
	if f.Endpoint != "" {
		c.DevTools.Endpoint = f.Endpoint
	}
	if f.Port != 0 {
		if f.Port != c.DevTools.Port && f.Endpoint == "" {
			c.DevTools.Endpoint = ""
		}
		c.DevTools.Port = f.Port
	}
	if f.BrowserBin != "" {
		c.Browser.Bin = f.BrowserBin
	}
	if f.UserDataDir != "" {
		c.Browser.UserDataDir = f.UserDataDir
	}
	if len(f.BrowserArg) > 0 {
		c.Browser.ExtraArgs = append(append([]string{}, c.Browser.ExtraArgs...), f.BrowserArg...)
	}
	return c.DevToolsConfig()
}

// components is the devtools stack built from one resolved config
type components struct {
	cfg       devtools.Config
	probe     *devtools.Probe
	launcher  *devtools.Launcher
	ensurer   *devtools.Ensurer
	resolver  *devtools.Resolver
	commander *devtools.Commander
}

func newComponents(cfg devtools.Config, logger *zap.Logger, reporter domain.Reporter) components {
	opts := []devtools.Option{devtools.WithLogger(logger), devtools.WithReporter(reporter)}
	probe := devtools.NewProbe(cfg, opts...)
	launcher := devtools.NewLauncher(opts...)
	return components{
		cfg:       cfg,
		probe:     probe,
		launcher:  launcher,
		ensurer:   devtools.NewEnsurer(cfg, probe, launcher, opts...),
		resolver:  devtools.NewResolver(cfg, opts...),
		commander: devtools.NewCommander(cfg, opts...),
	}
}
