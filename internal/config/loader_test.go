package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HyphaGroup/gevulot/internal/stream"
)

func TestLoadUnifiedConfig(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("valid unified config", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "valid.jsonc")
		configJSON := `{
			// Test config
			"server": {
				"address": ":9000"
			},
			"orchestrator": {
				"base_url": "http://orchestrator:9700",
				"request_timeout_seconds": 10,
				"credential": "prod"
			},
			"credentials": {
				"tokens": {
					"prod": {"token": "tok-prod", "description": "production"}
				},
				"default": "prod"
			},
			"poll": {
				"pending": {"base_ms": 2000, "max_ms": 60000},
				"max_attempts": 100
			},
			"sessions": {"max_active": 3}
		}`
		_ = os.WriteFile(configPath, []byte(configJSON), 0o644)

		cfg, err := LoadUnifiedConfig(configPath)
		if err != nil {
			t.Fatalf("LoadUnifiedConfig() error = %v", err)
		}
		if cfg.Server.Address != ":9000" {
			t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":9000")
		}
		if cfg.Orchestrator.BaseURL != "http://orchestrator:9700" {
			t.Errorf("Orchestrator.BaseURL = %q", cfg.Orchestrator.BaseURL)
		}
		if cfg.Poll.Pending.BaseMs != 2000 || cfg.Poll.MaxAttempts != 100 {
			t.Errorf("Poll section = %+v, want pending base 2000 and 100 attempts", cfg.Poll)
		}
		if cfg.Sessions.MaxActive != 3 {
			t.Errorf("Sessions.MaxActive = %d, want 3", cfg.Sessions.MaxActive)
		}
		if tok, ok := cfg.Credentials.GetToken("prod"); !ok || tok != "tok-prod" {
			t.Errorf("Credentials.GetToken(prod) = %q, %v", tok, ok)
		}
	})

	t.Run("JSONC comments are stripped", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "comments.jsonc")
		configJSON := `{
			// Line comment
			"server": {"address": ":8080"},
			/* Block comment */
			"orchestrator": {"base_url": "http://localhost:9700"}
		}`
		_ = os.WriteFile(configPath, []byte(configJSON), 0o644)

		cfg, err := LoadUnifiedConfig(configPath)
		if err != nil {
			t.Fatalf("LoadUnifiedConfig() error = %v", err)
		}
		if cfg.Server.Address != ":8080" {
			t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":8080")
		}
	})

	t.Run("applies defaults for missing fields", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "minimal.jsonc")
		configJSON := `{
			"orchestrator": {"base_url": "http://localhost:9700"}
		}`
		_ = os.WriteFile(configPath, []byte(configJSON), 0o644)

		cfg, err := LoadUnifiedConfig(configPath)
		if err != nil {
			t.Fatalf("LoadUnifiedConfig() error = %v", err)
		}
		if cfg.Server.Address != ":8080" {
			t.Errorf("Server.Address = %q, want default %q", cfg.Server.Address, ":8080")
		}
		if cfg.Orchestrator.RequestTimeoutSeconds != 30 {
			t.Errorf("Orchestrator.RequestTimeoutSeconds = %d, want default 30", cfg.Orchestrator.RequestTimeoutSeconds)
		}
		if cfg.Sessions.MaxActive != 10 || cfg.Sessions.IdleTimeoutMinutes != 30 {
			t.Errorf("Sessions = %+v, want defaults 10/30", cfg.Sessions)
		}
		if cfg.Storage.DataDir != "data" || cfg.Storage.HistoryRetentionDays != 30 {
			t.Errorf("Storage = %+v, want defaults data/30", cfg.Storage)
		}
		if cfg.Auth.RateLimitPerMinute != 120 {
			t.Errorf("Auth.RateLimitPerMinute = %d, want default 120", cfg.Auth.RateLimitPerMinute)
		}
		if cfg.Backup.Retention != 7 || cfg.Backup.IntervalHours != 24 {
			t.Errorf("Backup = %+v, want defaults 7/24", cfg.Backup)
		}
		if cfg.Stream.StallTimeoutSeconds != nil {
			t.Errorf("Stream.StallTimeoutSeconds = %v, want unset", *cfg.Stream.StallTimeoutSeconds)
		}
	})

	t.Run("invalid JSON returns error", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "invalid.jsonc")
		_ = os.WriteFile(configPath, []byte("not json"), 0o644)

		_, err := LoadUnifiedConfig(configPath)
		if err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("finds config in specified dir", func(t *testing.T) {
		configDir := filepath.Join(tmpDir, "custom")
		_ = os.MkdirAll(configDir, 0o755)
		_ = os.WriteFile(filepath.Join(configDir, "gevulot.jsonc"), []byte("{}"), 0o644)

		path, err := FindConfigPath(configDir)
		if err != nil {
			t.Fatalf("FindConfigPath() error = %v", err)
		}
		if filepath.Base(path) != "gevulot.jsonc" {
			t.Errorf("FindConfigPath() = %q, want gevulot.jsonc", path)
		}
	})

	t.Run("GEVULOT_HOME takes precedence", func(t *testing.T) {
		home := filepath.Join(tmpDir, "home")
		_ = os.MkdirAll(home, 0o755)
		_ = os.WriteFile(filepath.Join(home, "gevulot.jsonc"), []byte("{}"), 0o644)
		t.Setenv("GEVULOT_HOME", home)

		path, err := FindConfigPath("")
		if err != nil {
			t.Fatalf("FindConfigPath() error = %v", err)
		}
		if filepath.Dir(path) != home {
			t.Errorf("FindConfigPath() = %q, want under %q", path, home)
		}
	})

	t.Run("error when config not found", func(t *testing.T) {
		_, err := FindConfigPath(filepath.Join(tmpDir, "nonexistent"))
		if err == nil {
			t.Error("expected error when config not found")
		}
	})
}

func TestLoadAll(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "all")
	_ = os.MkdirAll(configDir, 0o755)

	configJSON := `{
		"server": {"address": ":7000"},
		"orchestrator": {"base_url": "http://orchestrator:9700"},
		"credentials": {
			"tokens": {"default": {"token": "tok-abc"}},
			"default": "default"
		},
		"storage": {"data_dir": "state"}
	}`
	_ = os.WriteFile(filepath.Join(configDir, "gevulot.jsonc"), []byte(configJSON), 0o644)

	cfg, err := LoadAll(configDir)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":7000")
	}
	if tok, ok := cfg.OrchestratorToken(); !ok || tok != "tok-abc" {
		t.Errorf("OrchestratorToken() = %q, %v, want tok-abc", tok, ok)
	}
	if cfg.ConfigDir != configDir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, configDir)
	}
	wantData := filepath.Join(configDir, "state")
	if cfg.DataDir() != wantData {
		t.Errorf("DataDir() = %q, want %q", cfg.DataDir(), wantData)
	}
	if cfg.HistoryPath() != filepath.Join(wantData, "history.db") {
		t.Errorf("HistoryPath() = %q", cfg.HistoryPath())
	}
}

func TestLoadedConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid URL", "http://localhost:9700", false},
		{"valid with prefix", "https://api.example.com/agent/v1", false},
		{"empty", "", true},
		{"no scheme", "localhost:9700", true},
		{"garbage", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &LoadedConfig{Orchestrator: OrchestratorSection{BaseURL: tt.baseURL}}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListCredentials(t *testing.T) {
	reg := &CredentialRegistry{
		Tokens: map[string]Credential{
			"prod":    {Token: "tok-prod", Description: "production orchestrator"},
			"staging": {Token: "tok-staging"},
			"dev":     {Token: "tok-dev"},
		},
		Default: "prod",
	}

	infos := reg.ListCredentials()
	if len(infos) != 3 {
		t.Fatalf("ListCredentials() returned %d entries, want 3", len(infos))
	}
	// Sorted by name, tokens never exposed
	wantNames := []string{"dev", "prod", "staging"}
	for i, info := range infos {
		if info.Name != wantNames[i] {
			t.Errorf("infos[%d].Name = %q, want %q", i, info.Name, wantNames[i])
		}
	}
	if !infos[1].IsDefault {
		t.Error("prod should be marked as the default")
	}
	if infos[0].IsDefault || infos[2].IsDefault {
		t.Error("only the default credential should carry the marker")
	}
	if infos[1].Description != "production orchestrator" {
		t.Errorf("Description = %q", infos[1].Description)
	}
}

func TestValidateCredentialReference(t *testing.T) {
	cfg := &LoadedConfig{
		Orchestrator: OrchestratorSection{BaseURL: "http://localhost:9700", Credential: "named"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted a credential name with no registry")
	}

	cfg.Credentials = &CredentialRegistry{Tokens: map[string]Credential{"other": {Token: "t"}}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted an undefined credential name")
	}

	cfg.Credentials.Tokens["named"] = Credential{Token: "t2"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v for a defined credential", err)
	}
}

func TestOrchestratorTokenPrecedence(t *testing.T) {
	cfg := &LoadedConfig{
		Orchestrator: OrchestratorSection{Credential: "named"},
		Credentials: &CredentialRegistry{
			Tokens: map[string]Credential{
				"named":   {Token: "tok-named"},
				"default": {Token: "tok-default"},
			},
			Default: "default",
		},
	}

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("GEVULOT_TOKEN", "tok-env")
		if tok, ok := cfg.OrchestratorToken(); !ok || tok != "tok-env" {
			t.Errorf("OrchestratorToken() = %q, %v, want tok-env", tok, ok)
		}
	})

	t.Run("named credential", func(t *testing.T) {
		t.Setenv("GEVULOT_TOKEN", "")
		if tok, ok := cfg.OrchestratorToken(); !ok || tok != "tok-named" {
			t.Errorf("OrchestratorToken() = %q, %v, want tok-named", tok, ok)
		}
	})

	t.Run("falls back to registry default", func(t *testing.T) {
		t.Setenv("GEVULOT_TOKEN", "")
		noName := *cfg
		noName.Orchestrator.Credential = ""
		if tok, ok := noName.OrchestratorToken(); !ok || tok != "tok-default" {
			t.Errorf("OrchestratorToken() = %q, %v, want tok-default", tok, ok)
		}
	})

	t.Run("absent everywhere", func(t *testing.T) {
		t.Setenv("GEVULOT_TOKEN", "")
		bare := &LoadedConfig{Credentials: &CredentialRegistry{}}
		if tok, ok := bare.OrchestratorToken(); ok || tok != "" {
			t.Errorf("OrchestratorToken() = %q, %v, want none", tok, ok)
		}
	})
}

func TestPollTuningConversion(t *testing.T) {
	cfg := &LoadedConfig{Poll: PollSection{
		Pending:               IntervalSection{BaseMs: 2000, MaxMs: 60000},
		MinIntervalMs:         100,
		MaxAttempts:           50,
		StallThresholdSeconds: 45,
	}}

	tuning := cfg.PollTuning()
	if tuning.Pending.Base != 2*time.Second || tuning.Pending.Max != time.Minute {
		t.Errorf("Pending = %+v, want 2s/1m", tuning.Pending)
	}
	if tuning.MinInterval != 100*time.Millisecond {
		t.Errorf("MinInterval = %v, want 100ms", tuning.MinInterval)
	}
	if tuning.MaxAttempts != 50 {
		t.Errorf("MaxAttempts = %d, want 50", tuning.MaxAttempts)
	}
	if tuning.StallThreshold != 45*time.Second {
		t.Errorf("StallThreshold = %v, want 45s", tuning.StallThreshold)
	}
	// Unset sections stay zero for the engine to fill in
	if tuning.Active.Base != 0 || tuning.FailureLimit != 0 {
		t.Errorf("unset fields = %+v active, %d limit, want zero", tuning.Active, tuning.FailureLimit)
	}
}

func TestStreamStallTimeout(t *testing.T) {
	secs := func(v int) *int { return &v }

	tests := []struct {
		name string
		set  *int
		want time.Duration
	}{
		{"unset keeps engine default", nil, 0},
		{"explicit zero disables", secs(0), stream.NoStallTimeout},
		{"explicit value", secs(45), 45 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &LoadedConfig{Stream: StreamSection{StallTimeoutSeconds: tt.set}}
			if got := cfg.StreamStallTimeout(); got != tt.want {
				t.Errorf("StreamStallTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "gevulot.jsonc")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	// The template must parse once comments are stripped
	cfg, err := LoadUnifiedConfig(path)
	if err != nil {
		t.Fatalf("LoadUnifiedConfig() on template error = %v", err)
	}
	if cfg.Orchestrator.BaseURL == "" {
		t.Error("template has no orchestrator.base_url")
	}
	if cfg.Stream.StallTimeoutSeconds == nil || *cfg.Stream.StallTimeoutSeconds != 120 {
		t.Errorf("template stall timeout = %v, want 120", cfg.Stream.StallTimeoutSeconds)
	}

	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() overwrote an existing config")
	}
}
