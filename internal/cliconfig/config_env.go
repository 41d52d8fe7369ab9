package cliconfig

import "os"

// ApplyEnvConfig applies ZKCLI_* environment variables to the Config.
// Environment values override the file but lose to explicit flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setServersFromString("servers", os.Getenv("ZKCLI_SERVERS"), &cfg.Servers)
	if err := s.setDuration("timeout", os.Getenv("ZKCLI_SESSION_TIMEOUT"), &cfg.SessionTimeout); err != nil {
		return err
	}
	s.setString("auth-scheme", os.Getenv("ZKCLI_AUTH_SCHEME"), &cfg.AuthScheme)
	s.setString("auth-data", os.Getenv("ZKCLI_AUTH_DATA"), &cfg.AuthData)
	s.setString("log-level", os.Getenv("ZKCLI_LOG_LEVEL"), &cfg.LogLevel)
	s.setBoolFromString("read-only", os.Getenv("ZKCLI_READ_ONLY"), &cfg.ReadOnly)
	s.setBoolFromString("no-color", os.Getenv("ZKCLI_NO_COLOR"), &cfg.NoColor)

	return nil
}
