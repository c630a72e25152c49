// Package main is the entry point for the coled relay, which pairs editors
// into sessions and forwards their edits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/config"
	"github.com/dshills/coled/internal/config/loader"
	"github.com/dshills/coled/internal/logging"
	"github.com/dshills/coled/internal/relay"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath, overrides := parseFlags()

	opts := []config.Option{config.WithOverrides(overrides)}
	if configPath != "" {
		opts = append(opts, config.WithFile(configPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, closeLog, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting relay", zap.String("version", version), zap.String("addr", cfg.Relay.ListenAddress))
	srv := relay.New(relay.WithLogger(logger))
	if err := srv.ListenAndServe(ctx, cfg.Relay.ListenAddress); err != nil {
		logger.Error("relay failed", zap.Error(err))
		return 1
	}
	return 0
}

func parseFlags() (string, map[string]any) {
	var (
		configPath  string
		listen      string
		logLevel    string
		logFile     string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file (TOML or YAML)")
	flag.StringVar(&listen, "listen", relay.DefaultListenAddress, "Address to listen on")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&logFile, "log-file", "", "Log file (default stderr)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "coled-relay - session relay for coled\n\n")
		fmt.Fprintf(os.Stderr, "Usage: coled-relay [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("coled-relay %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	overrides := make(map[string]any)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			loader.SetPath(overrides, "relay.listenAddress", listen)
		case "log-level":
			loader.SetPath(overrides, "logging.level", logLevel)
		case "log-file":
			loader.SetPath(overrides, "logging.file", logFile)
		}
	})
	return configPath, overrides
}
