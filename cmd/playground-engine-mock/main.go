// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/overlay-playground/lib/engine"
	"github.com/bureau-foundation/overlay-playground/lib/process"
	"github.com/bureau-foundation/overlay-playground/lib/service"
	"github.com/bureau-foundation/overlay-playground/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var socketPath string
	var fixturesPath string
	var delay time.Duration

	flagSet := pflag.NewFlagSet("playground-engine-mock", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "Unix socket to listen on (required)")
	flagSet.StringVar(&fixturesPath, "fixtures", "", "JSONC file of canned answers keyed by operation kind")
	flagSet.DurationVar(&delay, "delay", 0, "artificial latency added to every answer")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("playground-engine-mock")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if socketPath == "" {
		return errors.New("--socket is required")
	}

	fixtures := fixtureSet{}
	if fixturesPath != "" {
		var err error
		fixtures, err = readFixtures(fixturesPath)
		if err != nil {
			return err
		}
	}

	logger := service.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := engine.NewServer(socketPath, logger)
	newEngineMock(fixtures, delay, logger).register(server)

	logger.Info("engine mock starting",
		"socket", socketPath,
		"fixtures", len(fixtures),
		"delay", delay,
	)
	return server.Serve(ctx)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `playground-engine-mock is a stand-in compute engine for tests and
local development. It speaks the engine socket protocol and answers
from a fixture file; kinds without a fixture echo their input, and
GetInfo reads the document's info block.

Fixture file (JSONC):
  {
    // kind -> canned answer
    "CalculateOverlay": {"result": "overlay: 1.0.0\n"},
    "ApplyOverlay": {"error": "line 3: bad indentation", "delay": "200ms"},
  }

Usage:
  playground-engine-mock --socket PATH [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
