// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"

	"github.com/bureau-foundation/overlay-playground/lib/process"
	"github.com/bureau-foundation/overlay-playground/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("playground")
		return nil
	}

	err := root(processEnvironment()).execute(os.Args[1:], os.Stderr)
	if errors.Is(err, errUsage) {
		// Help has already been printed.
		return &process.ExitError{Code: 2}
	}
	return err
}
