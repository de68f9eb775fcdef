// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package share

import "os"

// placeNoReplace links source at destination, failing with an error
// matching fs.ErrExist if destination already exists. The caller
// removes source.
func placeNoReplace(source, destination string) error {
	return os.Link(source, destination)
}
