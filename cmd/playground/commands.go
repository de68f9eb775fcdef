// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"golang.org/x/term"

	"github.com/bureau-foundation/overlay-playground/lib/compress"
	"github.com/bureau-foundation/overlay-playground/lib/service"
	"github.com/bureau-foundation/overlay-playground/lib/snapshot"
)

// defaultServer is used when neither --server nor PLAYGROUND_SERVER
// is set.
const defaultServer = "http://localhost:8080"

// environment is the process surface the commands touch, swapped out
// in tests.
type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// isTerminal reports whether w is an interactive terminal.
	isTerminal func(w io.Writer) bool

	// httpClient defaults to http.DefaultClient.
	httpClient *http.Client
}

func processEnvironment() *environment {
	return &environment{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		isTerminal: func(w io.Writer) bool {
			file, ok := w.(*os.File)
			return ok && term.IsTerminal(int(file.Fd()))
		},
	}
}

func root(env *environment) *command {
	return &command{
		name:    "playground",
		summary: "Share and inspect overlay playground sessions.",
		subcommands: []*command{
			shareCommand(env),
			resolveCommand(env),
			compressCommand(env),
			decompressCommand(env),
		},
	}
}

func shareCommand(env *environment) *command {
	var (
		server       string
		origin       string
		formatName   string
		appURL       string
		snapshotPath string
		originalPath string
		resultPath   string
		timeout      time.Duration
		verbose      bool
	)
	return &command{
		name:    "share",
		summary: "Upload a session snapshot and print its share link",
		usage:   "playground share (--snapshot FILE | --original FILE --result FILE) [flags]",
		examples: []string{
			"playground share --original petstore.yaml --result petstore-edited.yaml",
			"playground share --snapshot session.jsonc --app-url https://play.example.com/",
		},
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("share", pflag.ContinueOnError)
			flagSet.StringVar(&server, "server", "", "playground server URL (default: $PLAYGROUND_SERVER or "+defaultServer+")")
			flagSet.StringVar(&origin, "origin", "", "Origin header to send (default: the server URL)")
			flagSet.StringVar(&formatName, "format", "gzip", "compression format: gzip, zstd, or lz4")
			flagSet.StringVar(&appURL, "app-url", "", "print a full share link on this app URL instead of the bare locator")
			flagSet.StringVar(&snapshotPath, "snapshot", "", `JSONC file with "original" and "result" fields ("-" for stdin)`)
			flagSet.StringVar(&originalPath, "original", "", "file holding the original document")
			flagSet.StringVar(&resultPath, "result", "", "file holding the edited document")
			flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "log request details to stderr")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			logger := service.NewCLILogger(env.stderr, verbose)

			session, err := loadSnapshot(env, snapshotPath, originalPath, resultPath)
			if err != nil {
				return err
			}
			format, err := compress.ParseFormat(formatName)
			if err != nil {
				return err
			}

			client := &snapshot.Client{
				BaseURL:    serverURL(env, server),
				Origin:     origin,
				Format:     format,
				HTTPClient: env.httpClient,
			}
			logger.Debug("sharing snapshot",
				"server", client.BaseURL,
				"format", format,
				"original_bytes", len(session.Original),
				"result_bytes", len(session.Result),
			)

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			locator, err := client.Share(ctx, session)
			if err != nil {
				var httpError *snapshot.HTTPError
				if errors.As(err, &httpError) && httpError.StatusCode == http.StatusForbidden {
					sentOrigin := client.Origin
					if sentOrigin == "" {
						sentOrigin = strings.TrimRight(client.BaseURL, "/")
					}
					return fmt.Errorf("%w (is the origin %q allowed by the server?)", err, sentOrigin)
				}
				return err
			}

			output := locator
			if appURL != "" {
				output, err = snapshot.ShareLink(appURL, locator)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(env.stdout, output)
			return nil
		},
	}
}

func resolveCommand(env *environment) *command {
	var (
		originalOut string
		resultOut   string
		timeout     time.Duration
		verbose     bool
	)
	return &command{
		name:    "resolve",
		summary: "Fetch the snapshot behind a share link or locator",
		usage:   "playground resolve LINK|LOCATOR [flags]",
		examples: []string{
			"playground resolve 'https://play.example.com/?s=aHR0cHM6Ly9...'",
			"playground resolve aHR0cHM6Ly9... --original-out before.yaml --result-out after.yaml",
		},
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			flagSet.StringVar(&originalOut, "original-out", "", "write the original document to this file")
			flagSet.StringVar(&resultOut, "result-out", "", "write the edited document to this file")
			flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "log request details to stderr")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one link or locator, got %d arguments", len(args))
			}
			logger := service.NewCLILogger(env.stderr, verbose)

			locator, err := snapshot.ParamFromLink(args[0])
			if err != nil {
				return err
			}
			objectURL, err := snapshot.DecodeLocator(locator)
			if err != nil {
				return err
			}
			logger.Debug("resolving snapshot", "url", objectURL)

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			client := &snapshot.Client{HTTPClient: env.httpClient}
			session, err := client.Resolve(ctx, locator)
			if err != nil {
				return err
			}

			if originalOut == "" && resultOut == "" {
				encoder := json.NewEncoder(env.stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(session)
			}
			if originalOut != "" {
				if err := os.WriteFile(originalOut, []byte(session.Original), 0644); err != nil {
					return err
				}
			}
			if resultOut != "" {
				if err := os.WriteFile(resultOut, []byte(session.Result), 0644); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func compressCommand(env *environment) *command {
	var (
		formatName string
		outputPath string
		force      bool
	)
	return &command{
		name:    "compress",
		summary: "Compress a file (or stdin) into a snapshot blob",
		usage:   "playground compress [FILE] [flags]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("compress", pflag.ContinueOnError)
			flagSet.StringVar(&formatName, "format", "gzip", "compression format: gzip, zstd, or lz4")
			flagSet.StringVarP(&outputPath, "output", "o", "", "write to this file instead of stdout")
			flagSet.BoolVar(&force, "force", false, "write binary output even when stdout is a terminal")
			return flagSet
		},
		run: func(args []string) error {
			format, err := compress.ParseFormat(formatName)
			if err != nil {
				return err
			}
			input, closeInput, err := openInput(env, args)
			if err != nil {
				return err
			}
			defer closeInput()

			if outputPath == "" {
				if env.isTerminal(env.stdout) && !force {
					return errors.New("refusing to write compressed data to a terminal; use --output or --force")
				}
				return compress.CompressStream(env.stdout, input, format)
			}

			var buffer bytes.Buffer
			if err := compress.CompressStream(&buffer, input, format); err != nil {
				return err
			}
			return os.WriteFile(outputPath, buffer.Bytes(), 0644)
		},
	}
}

func decompressCommand(env *environment) *command {
	var outputPath string
	return &command{
		name:    "decompress",
		summary: "Decompress a snapshot blob; the format is detected",
		usage:   "playground decompress [FILE] [flags]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decompress", pflag.ContinueOnError)
			flagSet.StringVarP(&outputPath, "output", "o", "", "write to this file instead of stdout")
			return flagSet
		},
		run: func(args []string) error {
			input, closeInput, err := openInput(env, args)
			if err != nil {
				return err
			}
			defer closeInput()

			// Decompress in full before writing so malformed input
			// produces no partial output.
			text, err := compress.Decompress(input)
			if err != nil {
				return err
			}
			if outputPath == "" {
				_, err = io.WriteString(env.stdout, text)
				return err
			}
			return os.WriteFile(outputPath, []byte(text), 0644)
		},
	}
}

// serverURL resolves the share server from the flag, then the
// environment, then the default.
func serverURL(env *environment, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if fromEnvironment := env.getenv("PLAYGROUND_SERVER"); fromEnvironment != "" {
		return fromEnvironment
	}
	return defaultServer
}

// openInput opens the single optional FILE argument; none or "-"
// means stdin.
func openInput(env *environment, args []string) (io.Reader, func(), error) {
	switch {
	case len(args) > 1:
		return nil, nil, fmt.Errorf("expected at most one input file, got %d", len(args))
	case len(args) == 0 || args[0] == "-":
		return env.stdin, func() {}, nil
	}
	file, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// loadSnapshot builds the snapshot to share from either a JSONC
// snapshot file or a pair of document files.
func loadSnapshot(env *environment, snapshotPath, originalPath, resultPath string) (snapshot.Snapshot, error) {
	if snapshotPath != "" {
		if originalPath != "" || resultPath != "" {
			return snapshot.Snapshot{}, errors.New("--snapshot cannot be combined with --original or --result")
		}
		var data []byte
		var err error
		if snapshotPath == "-" {
			data, err = io.ReadAll(env.stdin)
		} else {
			data, err = os.ReadFile(snapshotPath)
		}
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
		}
		return parseSnapshotFile(data)
	}

	if originalPath == "" || resultPath == "" {
		return snapshot.Snapshot{}, errors.New("either --snapshot or both --original and --result are required")
	}
	original, err := os.ReadFile(originalPath)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	result, err := os.ReadFile(resultPath)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Snapshot{Original: string(original), Result: string(result)}, nil
}

// parseSnapshotFile strips JSONC comments and trailing commas, then
// decodes the snapshot strictly.
func parseSnapshotFile(data []byte) (snapshot.Snapshot, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	var session snapshot.Snapshot
	if err := decoder.Decode(&session); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("parsing snapshot: %w", err)
	}
	return session, nil
}
