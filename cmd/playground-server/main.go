// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/overlay-playground/lib/bridge"
	"github.com/bureau-foundation/overlay-playground/lib/config"
	"github.com/bureau-foundation/overlay-playground/lib/engine"
	"github.com/bureau-foundation/overlay-playground/lib/process"
	"github.com/bureau-foundation/overlay-playground/lib/service"
	"github.com/bureau-foundation/overlay-playground/lib/share"
	"github.com/bureau-foundation/overlay-playground/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("playground-server")
		return nil
	}

	options, exit, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil || exit {
		return err
	}
	var cfg *config.Config
	if options.configPath != "" {
		cfg, err = config.LoadFile(options.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := service.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newAPI(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.close(); err != nil {
			logger.Error("shutting down", "error", err)
		}
	}()

	if options.warm {
		go func() {
			if err := application.bridge.Warm(ctx); err != nil {
				logger.Warn("engine warm-up failed; will retry on first request", "error", err)
			}
		}()
	}

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Server.ListenAddress,
		Handler:         application.handler(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Logger:          logger,
	})

	logger.Info("playground server starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"store", application.storeName,
		"engine_socket", cfg.Engine.SocketPath,
	)
	return server.Serve(ctx)
}

// newAPI builds the object store, share service, engine loader, and
// bridge described by cfg.
func newAPI(cfg *config.Config, logger *slog.Logger) (*api, error) {
	store, err := newStore(cfg.Share, logger)
	if err != nil {
		return nil, err
	}

	keyEncoding, err := share.ParseKeyEncoding(cfg.Share.KeyEncoding)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	publicBaseURL := cfg.Server.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = "http://" + cfg.Server.ListenAddress
	}

	shareService, err := share.NewService(share.Config{
		Store: store,
		Origins: share.OriginPolicy{
			PrimaryHost:     cfg.Share.PrimaryHost,
			ProductionHosts: cfg.Share.ProductionHosts,
		},
		MaxSize:       cfg.Share.MaxSize,
		KeyPrefix:     cfg.Share.KeyPrefix,
		KeyEncoding:   keyEncoding,
		ShortLength:   cfg.Share.ShortLength,
		PublicBaseURL: publicBaseURL,
		Logger:        logger,
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	computeBridge, err := bridge.New(bridge.Config{
		Loader:      newLoader(cfg.Engine, cfg.StartTimeout(), logger),
		CallTimeout: cfg.CallTimeout(),
		Logger:      logger,
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	return &api{
		bridge:    computeBridge,
		share:     shareService,
		storeName: cfg.Share.Store,
		logger:    logger,
	}, nil
}

func newStore(shareConfig config.ShareConfig, logger *slog.Logger) (share.ObjectStore, error) {
	switch shareConfig.Store {
	case "memory":
		return share.NewMemoryStore(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(shareConfig.Database), 0o755); err != nil {
			return nil, fmt.Errorf("creating share database directory: %w", err)
		}
		store, err := share.OpenSQLiteStore(shareConfig.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("opening share store: %w", err)
		}
		return store, nil
	case "file":
		store, err := share.NewFileStore(shareConfig.Directory)
		if err != nil {
			return nil, fmt.Errorf("opening share store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown share store %q", shareConfig.Store)
	}
}

// closeStore releases stores that hold resources, such as the SQLite
// connection pool.
func closeStore(store share.ObjectStore) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// newLoader starts the configured engine command, or dials an engine
// that is already listening when no command is configured.
func newLoader(engineConfig config.EngineConfig, startTimeout time.Duration, logger *slog.Logger) engine.Loader {
	if len(engineConfig.Command) == 0 {
		return engine.DialLoader(engineConfig.SocketPath)
	}
	processLoader := &engine.ProcessLoader{
		Command:      engineConfig.Command,
		SocketPath:   engineConfig.SocketPath,
		StartTimeout: startTimeout,
		Logger:       logger,
	}
	return processLoader.Loader()
}

type serverOptions struct {
	configPath string
	warm       bool
}

// parseFlags parses the command line. exit is true when help was
// printed and the server should not start.
func parseFlags(args []string, stderr io.Writer) (options serverOptions, exit bool, err error) {
	flagSet := pflag.NewFlagSet("playground-server", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&options.configPath, "config", "", "path to playground.yaml (default: $PLAYGROUND_CONFIG)")
	flagSet.BoolVar(&options.warm, "warm", false, "load the engine at startup instead of on the first request")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet, stderr)
			return options, true, nil
		}
		return options, false, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stderr)
		return options, true, nil
	}
	if flagSet.NArg() > 0 {
		return options, false, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return options, false, nil
}

func printHelp(flagSet *pflag.FlagSet, stderr io.Writer) {
	fmt.Fprintf(stderr, `playground-server serves the overlay playground backend.

Routes:
  POST /api/share              store a compressed session snapshot
  GET  /objects/{key}          fetch a stored snapshot
  POST /api/engine/{kind}      run an engine operation (?supersede=true)
  GET  /api/status             bridge counters and build version

Usage:
  playground-server [--config playground.yaml] [flags]

Flags:
`)
	flagSet.SetOutput(stderr)
	flagSet.PrintDefaults()
}
