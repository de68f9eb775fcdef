// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package share

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// placeNoReplace renames source to destination, failing with an error
// matching fs.ErrExist if destination already exists. Filesystems
// without RENAME_NOREPLACE fall back to a hard link.
func placeNoReplace(source, destination string) error {
	err := unix.Renameat2(unix.AT_FDCWD, source, unix.AT_FDCWD, destination, unix.RENAME_NOREPLACE)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) {
		return os.Link(source, destination)
	}
	if err != nil {
		return &os.LinkError{Op: "renameat2", Old: source, New: destination, Err: err}
	}
	return nil
}
