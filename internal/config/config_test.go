package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.DBDriver != DriverSQLite || cfg.DBPath != "data/galaxy.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AutosaveInterval != 5*time.Minute {
		t.Fatalf("autosave = %v", cfg.AutosaveInterval)
	}
	if cfg.LLM.NvidiaBaseURL == "" || cfg.LLM.NvidiaModel == "" {
		t.Fatalf("llm defaults missing: %+v", cfg.LLM)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("GALAXY_PORT", "9000")
	t.Setenv("GALAXY_SEED", "77")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("NVIDIA_API_KEY", "nv-key")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 || cfg.Seed != 77 {
		t.Fatalf("got %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSOrigins)
	}
	if cfg.LLM.NvidiaAPIKey != "nv-key" {
		t.Fatalf("nvidia key not read")
	}
}

func TestLoadServerDriverValidation(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr string
	}{
		{"postgres without dsn", "postgres", "", "GALAXY_DB_DSN is required"},
		{"unknown driver", "mysql", "", "unknown GALAXY_DB_DRIVER"},
		{"postgres with dsn", "postgres", "postgres://localhost/galaxy", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GALAXY_DB_DRIVER", tt.driver)
			t.Setenv("GALAXY_DB_DSN", tt.dsn)
			_, err := LoadServer()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("GALAXY_PORT", "not-an-int")
	_, err := LoadServer()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestLoadGamemasterRequiresKeys(t *testing.T) {
	t.Setenv("GALAXY_ADMIN_KEY", "")
	t.Setenv("GAMEMASTER_SESSION", "")
	if _, err := LoadGamemaster(); err == nil {
		t.Fatal("expected error for missing required settings")
	}

	t.Setenv("GALAXY_ADMIN_KEY", "secret")
	t.Setenv("GAMEMASTER_SESSION", "yavin")
	cfg, err := LoadGamemaster()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != 6*time.Hour || cfg.MaxAdvance != "1 month" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestNarratorBackend(t *testing.T) {
	tests := []struct {
		name string
		llm  LLM
		want string
	}{
		{"none", LLM{}, "fallback"},
		{"anthropic", LLM{AnthropicAPIKey: "a"}, "anthropic"},
		{"both prefers nvidia", LLM{AnthropicAPIKey: "a", NvidiaAPIKey: "n"}, "openai-compatible"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.llm.Backend(); got != tt.want {
				t.Fatalf("backend = %q, want %q", got, tt.want)
			}
			if n := tt.llm.Narrator(); n.Enabled() != (tt.want != "fallback") {
				t.Fatalf("narrator enabled = %v", n.Enabled())
			}
		})
	}
}
