// Package cliconfig layers zkcli configuration from defaults, an
// optional TOML file, ZKCLI_* environment variables and command flags,
// in that order of increasing precedence.
package cliconfig

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSessionTimeout is the session timeout requested when none is
// configured.
const DefaultSessionTimeout = 10 * time.Second

// Config holds CLI configuration for zkcli.
type Config struct {
	Servers        []string
	SessionTimeout time.Duration

	AuthScheme string
	AuthData   string

	ReadOnly bool
	NoColor  bool
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Servers:        []string{"127.0.0.1:2181"},
		SessionTimeout: DefaultSessionTimeout,
		LogLevel:       "warn",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server is required")
	}
	for _, s := range c.Servers {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("empty server address")
		}
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}
	if (c.AuthScheme == "") != (c.AuthData == "") {
		return fmt.Errorf("auth-scheme and auth-data must be set together")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't
// been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setServers sets the server list if non-empty and flag not changed.
func (s *configSetter) setServers(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setServersFromString splits a comma-separated server list. Used for
// environment variables.
func (s *configSetter) setServersFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

// setDuration parses and sets a duration from string if valid and flag
// not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false. Used for
// environment variables.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
