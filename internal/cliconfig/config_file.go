package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	Servers        []string `toml:"servers"`
	SessionTimeout string   `toml:"session_timeout"`
	AuthScheme     string   `toml:"auth_scheme"`
	AuthData       string   `toml:"auth_data"`
	ReadOnly       *bool    `toml:"read_only"`
	NoColor        *bool    `toml:"no_color"`
	LogLevel       string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path,
// ~/.zkcli/config.toml, or empty when the home directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".zkcli", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config
// struct. It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setServers("servers", fc.Servers, &cfg.Servers)
	if err := s.setDuration("timeout", fc.SessionTimeout, &cfg.SessionTimeout); err != nil {
		return err
	}
	s.setString("auth-scheme", fc.AuthScheme, &cfg.AuthScheme)
	s.setString("auth-data", fc.AuthData, &cfg.AuthData)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("read-only", fc.ReadOnly, &cfg.ReadOnly)
	s.setBool("no-color", fc.NoColor, &cfg.NoColor)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
