// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries a specific exit code out of run(). A nil Err
// exits silently with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Fatal writes "error: err" to stderr and exits. The exit code is 1
// unless err wraps an *ExitError. Use it in main() for errors from
// run() where the structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to w and returns the exit code for it.
func report(w io.Writer, err error) int {
	var exitError *ExitError
	if errors.As(err, &exitError) {
		if exitError.Err != nil {
			fmt.Fprintf(w, "error: %v\n", exitError.Err)
		}
		return exitError.Code
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
