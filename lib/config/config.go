// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "PLAYGROUND_CONFIG"

// Config is the master configuration for the playground server.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Share configures the share persistence service.
	Share ShareConfig `yaml:"share"`

	// Engine configures the compute engine and the bridge in front of it.
	Engine EngineConfig `yaml:"engine"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Share  *ShareConfig  `yaml:"share,omitempty"`
	Engine *EngineConfig `yaml:"engine,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the TCP address to serve on.
	// Default: 127.0.0.1:8080
	ListenAddress string `yaml:"listen_address"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout string `yaml:"shutdown_timeout"`

	// PublicBaseURL is the externally visible origin of this server,
	// used to build object URLs. Empty derives it from the listen
	// address.
	PublicBaseURL string `yaml:"public_base_url"`
}

// ShareConfig configures the share persistence service.
type ShareConfig struct {
	// PrimaryHost is the deployment hostname whose origin may share.
	// Default: ${PLAYGROUND_HOST:-localhost}
	PrimaryHost string `yaml:"primary_host"`

	// ProductionHosts are additional allowed hostnames.
	ProductionHosts []string `yaml:"production_hosts"`

	// MaxSize is the largest accepted payload in bytes.
	// Default: 5242880 (5 MiB)
	MaxSize int64 `yaml:"max_size"`

	// KeyPrefix is prepended to every object key.
	// Default: share-urls/
	KeyPrefix string `yaml:"key_prefix"`

	// KeyEncoding is "hex" or "base64".
	// Default: hex
	KeyEncoding string `yaml:"key_encoding"`

	// ShortLength is the base64 key length. Ignored for hex.
	// Default: 12
	ShortLength int `yaml:"short_length"`

	// Store selects the object store backend: "file", "sqlite", or
	// "memory".
	// Default: file
	Store string `yaml:"store"`

	// Directory is the root of the file store.
	// Default: ${HOME}/.cache/playground/objects
	Directory string `yaml:"directory"`

	// Database is the SQLite file of the sqlite store.
	// Default: ${HOME}/.cache/playground/objects.db
	Database string `yaml:"database"`
}

// EngineConfig configures the compute engine.
type EngineConfig struct {
	// SocketPath is the Unix socket the engine listens on.
	// Default: /run/playground/engine.sock
	SocketPath string `yaml:"socket_path"`

	// Command starts the engine when set. The engine is passed
	// --socket <SocketPath>. Empty means an engine is already
	// listening on SocketPath.
	Command []string `yaml:"command"`

	// StartTimeout bounds how long a started engine may take to
	// begin listening.
	// Default: 10s
	StartTimeout string `yaml:"start_timeout"`

	// CallTimeout bounds a single engine call. "0" selects the
	// bridge default; a negative duration disables the timeout.
	// Default: 30s
	CallTimeout string `yaml:"call_timeout"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			ListenAddress:   "127.0.0.1:8080",
			ShutdownTimeout: "10s",
		},
		Share: ShareConfig{
			PrimaryHost: "${PLAYGROUND_HOST:-localhost}",
			MaxSize:     5 << 20,
			KeyPrefix:   "share-urls/",
			KeyEncoding: "hex",
			ShortLength: 12,
			Store:       "file",
			Directory:   "${HOME}/.cache/playground/objects",
			Database:    "${HOME}/.cache/playground/objects.db",
		},
		Engine: EngineConfig{
			SocketPath:   "/run/playground/engine.sock",
			StartTimeout: "10s",
			CallTimeout:  "30s",
		},
	}
}

// Load loads configuration from the PLAYGROUND_CONFIG environment variable.
//
// There are no fallbacks or defaults - if PLAYGROUND_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your playground.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. The only expansion
// performed is ${VAR} and ${VAR:-default} in path, host, and URL fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production never keeps shares in memory.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Share: &ShareConfig{Store: "file"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.ListenAddress != "" {
			c.Server.ListenAddress = overrides.Server.ListenAddress
		}
		if overrides.Server.ShutdownTimeout != "" {
			c.Server.ShutdownTimeout = overrides.Server.ShutdownTimeout
		}
		if overrides.Server.PublicBaseURL != "" {
			c.Server.PublicBaseURL = overrides.Server.PublicBaseURL
		}
	}

	if overrides.Share != nil {
		if overrides.Share.PrimaryHost != "" {
			c.Share.PrimaryHost = overrides.Share.PrimaryHost
		}
		if overrides.Share.ProductionHosts != nil {
			c.Share.ProductionHosts = overrides.Share.ProductionHosts
		}
		if overrides.Share.MaxSize != 0 {
			c.Share.MaxSize = overrides.Share.MaxSize
		}
		if overrides.Share.KeyPrefix != "" {
			c.Share.KeyPrefix = overrides.Share.KeyPrefix
		}
		if overrides.Share.KeyEncoding != "" {
			c.Share.KeyEncoding = overrides.Share.KeyEncoding
		}
		if overrides.Share.ShortLength != 0 {
			c.Share.ShortLength = overrides.Share.ShortLength
		}
		if overrides.Share.Store != "" {
			c.Share.Store = overrides.Share.Store
		}
		if overrides.Share.Directory != "" {
			c.Share.Directory = overrides.Share.Directory
		}
		if overrides.Share.Database != "" {
			c.Share.Database = overrides.Share.Database
		}
	}

	if overrides.Engine != nil {
		if overrides.Engine.SocketPath != "" {
			c.Engine.SocketPath = overrides.Engine.SocketPath
		}
		if overrides.Engine.Command != nil {
			c.Engine.Command = overrides.Engine.Command
		}
		if overrides.Engine.StartTimeout != "" {
			c.Engine.StartTimeout = overrides.Engine.StartTimeout
		}
		if overrides.Engine.CallTimeout != "" {
			c.Engine.CallTimeout = overrides.Engine.CallTimeout
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths, hosts, and URLs.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Server.ListenAddress = expandVars(c.Server.ListenAddress, vars)
	c.Server.PublicBaseURL = expandVars(c.Server.PublicBaseURL, vars)
	c.Share.PrimaryHost = expandVars(c.Share.PrimaryHost, vars)
	for i, host := range c.Share.ProductionHosts {
		c.Share.ProductionHosts[i] = expandVars(host, vars)
	}
	c.Share.Directory = expandVars(c.Share.Directory, vars)
	c.Share.Database = expandVars(c.Share.Database, vars)
	c.Engine.SocketPath = expandVars(c.Engine.SocketPath, vars)
	for i, argument := range c.Engine.Command {
		c.Engine.Command[i] = expandVars(argument, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if _, _, err := net.SplitHostPort(c.Server.ListenAddress); err != nil {
		errs = append(errs, fmt.Errorf("server.listen_address: %w", err))
	}
	if _, err := parseDuration(c.Server.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout: %w", err))
	}
	if c.Server.PublicBaseURL != "" {
		parsed, err := url.Parse(c.Server.PublicBaseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("server.public_base_url must be an absolute http(s) URL, got %q", c.Server.PublicBaseURL))
		}
	}

	if c.Share.PrimaryHost == "" {
		errs = append(errs, fmt.Errorf("share.primary_host is required"))
	}
	if strings.Contains(c.Share.PrimaryHost, "/") {
		errs = append(errs, fmt.Errorf("share.primary_host must be a hostname, got %q", c.Share.PrimaryHost))
	}
	if c.Share.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("share.max_size must be positive, got %d", c.Share.MaxSize))
	}
	encodings := []string{"hex", "base64"}
	if !contains(encodings, c.Share.KeyEncoding) {
		errs = append(errs, fmt.Errorf("share.key_encoding must be one of: %v", encodings))
	}
	if c.Share.KeyEncoding == "base64" && (c.Share.ShortLength <= 0 || c.Share.ShortLength > 43) {
		errs = append(errs, fmt.Errorf("share.short_length must be between 1 and 43, got %d", c.Share.ShortLength))
	}
	stores := []string{"file", "sqlite", "memory"}
	if !contains(stores, c.Share.Store) {
		errs = append(errs, fmt.Errorf("share.store must be one of: %v", stores))
	}
	if c.Share.Store == "file" && c.Share.Directory == "" {
		errs = append(errs, fmt.Errorf("share.directory is required for the file store"))
	}
	if c.Share.Store == "sqlite" && c.Share.Database == "" {
		errs = append(errs, fmt.Errorf("share.database is required for the sqlite store"))
	}
	if c.Environment == Production && c.Share.Store == "memory" {
		errs = append(errs, fmt.Errorf("share.store=memory is not allowed in production"))
	}

	if c.Engine.SocketPath == "" {
		errs = append(errs, fmt.Errorf("engine.socket_path is required"))
	}
	if duration, err := parseDuration(c.Engine.StartTimeout); err != nil {
		errs = append(errs, fmt.Errorf("engine.start_timeout: %w", err))
	} else if duration <= 0 {
		errs = append(errs, fmt.Errorf("engine.start_timeout must be positive"))
	}
	if _, err := parseDuration(c.Engine.CallTimeout); err != nil {
		errs = append(errs, fmt.Errorf("engine.call_timeout: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ShutdownTimeout returns the parsed server shutdown timeout. Call
// Validate first; an unparseable value yields zero.
func (c *Config) ShutdownTimeout() time.Duration {
	duration, _ := parseDuration(c.Server.ShutdownTimeout)
	return duration
}

// StartTimeout returns the parsed engine start timeout.
func (c *Config) StartTimeout() time.Duration {
	duration, _ := parseDuration(c.Engine.StartTimeout)
	return duration
}

// CallTimeout returns the parsed engine call timeout.
func (c *Config) CallTimeout() time.Duration {
	duration, _ := parseDuration(c.Engine.CallTimeout)
	return duration
}

// parseDuration parses a Go duration string. Empty and "0" are zero.
func parseDuration(value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
