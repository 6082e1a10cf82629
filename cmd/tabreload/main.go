package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/tabreload/internal/cli"
	"github.com/vburojevic/tabreload/internal/config"
)

const quickStart = `tabreload - reload a browser tab after every build

Quick start:
  tabreload watch                                   Run vite build --watch, reload http://localhost:5173/
  tabreload watch -u http://localhost:3000/ -- npm run build:watch
  tabreload targets                                 Show debuggable tabs
  tabreload reload                                  Reload once

For help:
  tabreload --help                                  All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("TABRELOAD_CONFIG"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; explicit flags still win
	vars := kong.Vars{
		"config_format": cfg.Format,
		"config_url":    cfg.Target.URLPrefix,
		"config_port":   strconv.Itoa(cfg.DevTools.Port),
	}

	ctx := kong.Parse(&c,
		kong.Name("tabreload"),
		kong.Description("Reload a browser tab over the Chrome DevTools Protocol whenever a build finishes"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
