package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/HyphaGroup/gevulot/internal/poll"
	"github.com/HyphaGroup/gevulot/internal/stream"
)

// LoadedConfig holds all configuration loaded from gevulot.jsonc
type LoadedConfig struct {
	Server       ServerSection
	Orchestrator OrchestratorSection
	Credentials  *CredentialRegistry
	Poll         PollSection
	Stream       StreamSection
	Sessions     SessionsSection
	Storage      StorageSection
	Auth         AuthSection
	Backup       BackupSection
	ConfigDir    string
}

// LoadAll loads configuration from gevulot.jsonc
func LoadAll(configDir string) (*LoadedConfig, error) {
	configPath, err := FindConfigPath(configDir)
	if err != nil {
		return nil, err
	}

	unified, err := LoadUnifiedConfig(configPath)
	if err != nil {
		return nil, err
	}

	return unified.ToLoadedConfig(filepath.Dir(configPath)), nil
}

// Validate checks that required configuration is present
func (c *LoadedConfig) Validate() error {
	if c.Orchestrator.BaseURL == "" {
		return fmt.Errorf("orchestrator.base_url is required: add to gevulot.jsonc")
	}
	u, err := url.Parse(c.Orchestrator.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("orchestrator.base_url %q is not a valid URL", c.Orchestrator.BaseURL)
	}
	if c.Orchestrator.Credential != "" && (c.Credentials == nil || !c.Credentials.Has(c.Orchestrator.Credential)) {
		return fmt.Errorf("orchestrator.credential %q is not defined in credentials.tokens", c.Orchestrator.Credential)
	}
	return nil
}

// OrchestratorToken resolves the outbound bearer token. GEVULOT_TOKEN
// overrides the credential registry.
func (c *LoadedConfig) OrchestratorToken() (string, bool) {
	if env := os.Getenv("GEVULOT_TOKEN"); env != "" {
		return env, true
	}
	if c.Credentials == nil {
		return "", false
	}
	if c.Orchestrator.Credential != "" {
		return c.Credentials.GetToken(c.Orchestrator.Credential)
	}
	return c.Credentials.GetDefaultToken()
}

// RequestTimeout returns the per-request timeout for non-streaming calls
func (c *LoadedConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Orchestrator.RequestTimeoutSeconds) * time.Second
}

// PollTuning converts the poll section to engine tuning. Zero fields
// keep the engine defaults.
func (c *LoadedConfig) PollTuning() poll.Tuning {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	interval := func(s IntervalSection) poll.Strategy {
		return poll.Strategy{Base: ms(s.BaseMs), Max: ms(s.MaxMs)}
	}
	return poll.Tuning{
		Pending:        interval(c.Poll.Pending),
		Active:         interval(c.Poll.Active),
		LongRunning:    interval(c.Poll.LongRunning),
		ErrorRecovery:  interval(c.Poll.ErrorRecovery),
		MinInterval:    ms(c.Poll.MinIntervalMs),
		MaxInterval:    ms(c.Poll.MaxIntervalMs),
		MaxAttempts:    c.Poll.MaxAttempts,
		StallThreshold: time.Duration(c.Poll.StallThresholdSeconds) * time.Second,
		FailureLimit:   c.Poll.FailureLimit,
	}
}

// StreamStallTimeout returns the stream watchdog window. Unset keeps
// the engine default; an explicit 0 disables the watchdog.
func (c *LoadedConfig) StreamStallTimeout() time.Duration {
	if c.Stream.StallTimeoutSeconds == nil {
		return 0
	}
	if *c.Stream.StallTimeoutSeconds <= 0 {
		return stream.NoStallTimeout
	}
	return time.Duration(*c.Stream.StallTimeoutSeconds) * time.Second
}

// SessionIdleTimeout returns the idle window before a session is reaped
func (c *LoadedConfig) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Sessions.IdleTimeoutMinutes) * time.Minute
}

// DataDir returns the data directory, resolving relative paths against
// the config file's directory
func (c *LoadedConfig) DataDir() string {
	dir := c.Storage.DataDir
	if dir == "" {
		dir = "data"
	}
	if !filepath.IsAbs(dir) && c.ConfigDir != "" {
		return filepath.Join(c.ConfigDir, dir)
	}
	return dir
}

// HistoryPath returns the conversation history database path
func (c *LoadedConfig) HistoryPath() string {
	return filepath.Join(c.DataDir(), "history.db")
}

// SchedulePath returns the schedule database path
func (c *LoadedConfig) SchedulePath() string {
	return filepath.Join(c.DataDir(), "schedules.db")
}

// BackupDir returns the backup directory, resolving relative paths
// against the config file's directory
func (c *LoadedConfig) BackupDir() string {
	dir := c.Backup.Directory
	if dir == "" {
		dir = "data/backups"
	}
	if !filepath.IsAbs(dir) && c.ConfigDir != "" {
		return filepath.Join(c.ConfigDir, dir)
	}
	return dir
}
