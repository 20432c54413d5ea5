package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user supplied flag values prior to merging into the loaded
// configuration so main.go can validate and map.
type cliConfig struct {
	configPath  string
	listenAddr  string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := pflag.NewFlagSet("sia-server", pflag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVarP(&cfg.configPath, "config", "c", "", "Path to the YAML configuration file")
	fs.StringVar(&cfg.listenAddr, "listen", "", "Override the receiver listen address (host:port)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Override log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.logLevel != "" {
		switch cfg.logLevel {
		case "debug", "info", "warn", "error":
		default:
			return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
		}
	}
	return cfg, nil
}
