package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UnifiedConfig is the single configuration file format for gevulot.jsonc
type UnifiedConfig struct {
	Server       ServerSection       `json:"server"`
	Orchestrator OrchestratorSection `json:"orchestrator"`
	Credentials  CredentialRegistry  `json:"credentials"`
	Poll         PollSection         `json:"poll"`
	Stream       StreamSection       `json:"stream"`
	Sessions     SessionsSection     `json:"sessions"`
	Storage      StorageSection      `json:"storage"`
	Auth         AuthSection         `json:"auth"`
	Backup       BackupSection       `json:"backup"`
}

// ServerSection configures the serve mode HTTP listener
type ServerSection struct {
	Address string `json:"address"`
}

// OrchestratorSection points at the agent orchestrator
type OrchestratorSection struct {
	BaseURL               string `json:"base_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	Credential            string `json:"credential"` // named credential; empty means the registry default
}

// PollSection tunes the poll engine. Zero fields fall back to the
// engine defaults.
type PollSection struct {
	Pending               IntervalSection `json:"pending"`
	Active                IntervalSection `json:"active"`
	LongRunning           IntervalSection `json:"long_running"`
	ErrorRecovery         IntervalSection `json:"error_recovery"`
	MinIntervalMs         int             `json:"min_interval_ms"`
	MaxIntervalMs         int             `json:"max_interval_ms"`
	MaxAttempts           int             `json:"max_attempts"`
	StallThresholdSeconds int             `json:"stall_threshold_seconds"`
	FailureLimit          int             `json:"failure_limit"`
}

// IntervalSection is one strategy's base and cap in milliseconds
type IntervalSection struct {
	BaseMs int `json:"base_ms"`
	MaxMs  int `json:"max_ms"`
}

// StreamSection tunes the stream engine. A stall timeout of 0 disables
// the watchdog; leaving it unset keeps the engine default.
type StreamSection struct {
	StallTimeoutSeconds *int `json:"stall_timeout_seconds"`
}

// SessionsSection bounds the live session registry
type SessionsSection struct {
	MaxActive          int `json:"max_active"`
	IdleTimeoutMinutes int `json:"idle_timeout_minutes"`
	EventBufferSize    int `json:"event_buffer_size"`
}

// StorageSection locates the data directory and retention policy
type StorageSection struct {
	DataDir              string `json:"data_dir"`
	HistoryRetentionDays int    `json:"history_retention_days"`
}

// AuthSection configures inbound auth for the serve mode
type AuthSection struct {
	Tokens             []string `json:"tokens"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
}

// BackupSection configures data directory snapshots
type BackupSection struct {
	Enabled       bool   `json:"enabled"`
	Directory     string `json:"directory"`
	Retention     int    `json:"retention"`
	IntervalHours int    `json:"interval_hours"`
}

// FindConfigPath returns the path to gevulot.jsonc using precedence:
// 1. configDir + /gevulot.jsonc (if configDir specified)
// 2. $GEVULOT_HOME/gevulot.jsonc
// 3. ./.gevulot/gevulot.jsonc (project-local)
// 4. ~/.gevulot/gevulot.jsonc (user global)
func FindConfigPath(configDir string) (string, error) {
	if configDir != "" {
		path := filepath.Join(configDir, "gevulot.jsonc")
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("gevulot.jsonc not found in %s", configDir)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return path, nil
		}
		return abs, nil
	}

	var candidates []string
	if home := os.Getenv("GEVULOT_HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, "gevulot.jsonc"))
	}
	candidates = append(candidates, filepath.Join(".gevulot", "gevulot.jsonc"))
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".gevulot", "gevulot.jsonc"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("gevulot.jsonc not found; tried: %v", candidates)
}

// LoadUnifiedConfig loads configuration from a single gevulot.jsonc file
func LoadUnifiedConfig(configPath string) (*UnifiedConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	jsonData := StripJSONComments(data)

	var cfg UnifiedConfig
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	applyUnifiedDefaults(&cfg)

	if cfg.Credentials.Tokens == nil {
		cfg.Credentials.Tokens = make(map[string]Credential)
	}

	return &cfg, nil
}

func applyUnifiedDefaults(cfg *UnifiedConfig) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Orchestrator.RequestTimeoutSeconds == 0 {
		cfg.Orchestrator.RequestTimeoutSeconds = 30
	}

	if cfg.Sessions.MaxActive == 0 {
		cfg.Sessions.MaxActive = 10
	}
	if cfg.Sessions.IdleTimeoutMinutes == 0 {
		cfg.Sessions.IdleTimeoutMinutes = 30
	}
	if cfg.Sessions.EventBufferSize == 0 {
		cfg.Sessions.EventBufferSize = 1000
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.HistoryRetentionDays == 0 {
		cfg.Storage.HistoryRetentionDays = 30
	}

	if cfg.Auth.RateLimitPerMinute == 0 {
		cfg.Auth.RateLimitPerMinute = 120
	}

	if cfg.Backup.Directory == "" {
		cfg.Backup.Directory = "data/backups"
	}
	if cfg.Backup.Retention == 0 {
		cfg.Backup.Retention = 7
	}
	if cfg.Backup.IntervalHours == 0 {
		cfg.Backup.IntervalHours = 24
	}
}

// ToLoadedConfig converts UnifiedConfig to LoadedConfig
func (u *UnifiedConfig) ToLoadedConfig(configDir string) *LoadedConfig {
	creds := u.Credentials
	return &LoadedConfig{
		Server:       u.Server,
		Orchestrator: u.Orchestrator,
		Credentials:  &creds,
		Poll:         u.Poll,
		Stream:       u.Stream,
		Sessions:     u.Sessions,
		Storage:      u.Storage,
		Auth:         u.Auth,
		Backup:       u.Backup,
		ConfigDir:    configDir,
	}
}

// DefaultConfigTemplate is written by the init command
const DefaultConfigTemplate = `{
  // gevulot configuration
  "orchestrator": {
    // Base URL of the agent orchestrator, including any path prefix
    "base_url": "http://127.0.0.1:9700",
    "request_timeout_seconds": 30,
    // Which named credential to send; empty uses credentials.default
    "credential": ""
  },
  "credentials": {
    "tokens": {
      // "prod": {"token": "...", "description": "production orchestrator"}
    },
    "default": ""
  },
  "server": {
    // serve mode listen address
    "address": ":8080"
  },
  "poll": {
    // Intervals in milliseconds; zero keeps the engine default
    "pending":        {"base_ms": 1000, "max_ms": 30000},
    "active":         {"base_ms": 500,  "max_ms": 2000},
    "long_running":   {"base_ms": 5000, "max_ms": 5000},
    "error_recovery": {"base_ms": 2000, "max_ms": 15000},
    "min_interval_ms": 250,
    "max_interval_ms": 30000,
    "max_attempts": 240,
    "stall_threshold_seconds": 30,
    "failure_limit": 3
  },
  "stream": {
    // Seconds without a read before the stream is declared stalled; 0 disables
    "stall_timeout_seconds": 120
  },
  "sessions": {
    "max_active": 10,
    "idle_timeout_minutes": 30,
    "event_buffer_size": 1000
  },
  "storage": {
    // Relative paths resolve against this file's directory
    "data_dir": "data",
    "history_retention_days": 30
  },
  "auth": {
    // Bearer tokens accepted by the serve mode; empty disables auth
    "tokens": [],
    "rate_limit_per_minute": 120
  },
  "backup": {
    "enabled": false,
    "directory": "data/backups",
    "retention": 7,
    "interval_hours": 24
  }
}
`

// WriteDefault writes the default config template, refusing to overwrite
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
