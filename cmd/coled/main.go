// Package main is the entry point for the coled editor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/app"
	"github.com/dshills/coled/internal/collab"
	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/config"
	"github.com/dshills/coled/internal/config/loader"
	"github.com/dshills/coled/internal/config/watcher"
	"github.com/dshills/coled/internal/engine/document"
	"github.com/dshills/coled/internal/logging"
	"github.com/dshills/coled/internal/renderer/backend"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	configPath string
	// explicit is set when the config path came from -config.
	explicit  bool
	overrides map[string]any
	file      string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// The terminal is ours; never log to it.
	logger, closeLog, err := logging.New(cfg.Logging, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()
	defer func() { _ = logger.Sync() }()

	doc := document.New(document.WithTabStop(cfg.Editor.TabStop))
	if opts.file != "" {
		if err := doc.LoadFile(opts.file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if err := edit(opts, cfg, logger, doc); err != nil {
		logger.Error("editor failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// edit owns the terminal for the lifetime of the editor, so errors are
// reported after the terminal is restored.
func edit(opts options, cfg *config.Config, logger *zap.Logger, doc *document.Document) error {
	term, err := backend.NewTerminal()
	if err != nil {
		return fmt.Errorf("failed to create terminal: %w", err)
	}
	if err := term.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer term.Shutdown()

	editor := app.New(term,
		app.WithFilename(opts.file),
		app.WithVersion(version),
		app.WithQuitTimes(cfg.Editor.QuitTimes),
		app.WithStatusTTL(cfg.StatusMessageTTL()),
		app.WithLogger(logger.Named("editor")),
	)
	client := collab.NewClient(doc, editor,
		collab.WithAddress(cfg.Address()),
		collab.WithReconnectInterval(cfg.ReconnectInterval()),
		collab.WithLimits(session.Limits{
			MaxPasswordLength: cfg.Session.MaxPasswordLength,
			SessionIDLength:   cfg.Session.SessionIDLength,
		}),
		collab.WithLogger(logger.Named("collab")),
		collab.WithNotify(editor.Notify),
		collab.WithStatus(editor.SetStatus),
	)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing client", zap.Error(err))
		}
	}()
	editor.Attach(client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watchDone := watchConfig(ctx, opts, logger, client)
	defer func() {
		stop()
		<-watchDone
	}()

	logger.Info("editor started", zap.String("version", version), zap.String("file", opts.file))
	if err := editor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchConfig reloads the config file on change and pushes the new
// reconnect interval into the client. The returned channel is closed when
// watching stops.
func watchConfig(ctx context.Context, opts options, logger *zap.Logger, client *collab.Client) <-chan struct{} {
	done := make(chan struct{})
	if opts.configPath == "" {
		close(done)
		return done
	}
	w, err := watcher.New(opts.configPath,
		func() (*config.Config, error) { return loadConfig(opts) },
		func(cfg *config.Config) { client.SetReconnectInterval(cfg.ReconnectInterval()) },
		watcher.WithLogger(logger.Named("config")),
	)
	if err != nil {
		logger.Warn("config watching disabled", zap.Error(err))
		close(done)
		return done
	}
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	return done
}

func loadConfig(opts options) (*config.Config, error) {
	fileOpt := config.WithOptionalFile(opts.configPath)
	if opts.explicit {
		fileOpt = config.WithFile(opts.configPath)
	}
	return config.Load(fileOpt, config.WithOverrides(opts.overrides))
}

func parseFlags() options {
	var (
		opts        options
		logLevel    string
		server      string
		port        int
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file (TOML or YAML)")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&server, "server", "", "Relay address")
	flag.IntVar(&port, "port", 0, "Relay port")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "coled - collaborative terminal editor\n\n")
		fmt.Fprintf(os.Stderr, "Usage: coled [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys:\n")
		fmt.Fprintf(os.Stderr, "  Ctrl-S save, Ctrl-Q quit, Ctrl-N create or join a session, Ctrl-R resync from host\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("coled %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if flag.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "Error: at most one file may be given\n")
		os.Exit(1)
	}
	opts.file = flag.Arg(0)

	if opts.configPath != "" {
		opts.explicit = true
	} else {
		opts.configPath = config.DefaultPath()
	}

	// Only flags given on the command line override lower layers.
	opts.overrides = make(map[string]any)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			if _, err := logging.ParseLevel(logLevel); err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", logLevel)
				os.Exit(1)
			}
			loader.SetPath(opts.overrides, "logging.level", logLevel)
		case "server":
			loader.SetPath(opts.overrides, "network.serverAddress", server)
		case "port":
			loader.SetPath(opts.overrides, "network.serverPort", port)
		}
	})

	return opts
}
