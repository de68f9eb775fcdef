// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates the standard server logger: a JSON handler
// writing to stderr at Info level. It also sets the default slog
// logger so that library code falling back to slog.Default gets the
// same handler.
func NewLogger() *slog.Logger {
	return newLogger(os.Stderr, slog.LevelInfo, true)
}

// NewCLILogger creates the logger for interactive commands: a text
// handler on w at Warn level, or Debug when verbose.
func NewCLILogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return newLogger(w, level, false)
}

func newLogger(w io.Writer, level slog.Level, structured bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
