// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the playground
// server.
//
// Configuration is loaded from a single file specified by either the
// PLAYGROUND_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production refuses the in-memory share
// store.
//
// Variable expansion is performed on path, host, and URL fields after
// loading: ${HOME}, ${PLAYGROUND_HOST}, and ${VAR:-default} patterns
// are expanded. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Server, Share, Engine
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other playground packages.
package config
