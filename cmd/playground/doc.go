// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Playground is the command-line client for overlay playground share
// links.
//
//	playground share     upload a session snapshot, print the locator or link
//	playground resolve   fetch the snapshot behind a link or locator
//	playground compress  compress a file into a snapshot blob
//	playground decompress  detect the format and decompress a blob
//
// The share server defaults to $PLAYGROUND_SERVER. compress refuses to
// write binary data to a terminal unless --output or --force is given.
package main
