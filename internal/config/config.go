// Package config loads runtime settings for the server and the gamemaster from
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/talgya/galaxy-of-consequence/internal/llm"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Server configures cmd/galaxysim.
type Server struct {
	Port      int    `env:"GALAXY_PORT" envDefault:"8080"`
	AdminKey  string `env:"GALAXY_ADMIN_KEY"`
	JWTSecret string `env:"GALAXY_JWT_SECRET"`
	// CORSOrigins replaces the built-in allow list when set.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	DBDriver string `env:"GALAXY_DB_DRIVER" envDefault:"sqlite"`
	DBPath   string `env:"GALAXY_DB_PATH" envDefault:"data/galaxy.db"`
	DBDSN    string `env:"GALAXY_DB_DSN"`

	// Seed fixes the simulation's random source. Zero draws one at startup.
	Seed            int64  `env:"GALAXY_SEED"`
	RandomOrgAPIKey string `env:"RANDOM_ORG_API_KEY"`

	LLM LLM

	// AutosaveInterval is how often live sessions are flushed to the store.
	AutosaveInterval time.Duration `env:"GALAXY_AUTOSAVE_INTERVAL" envDefault:"5m"`
}

// LLM selects the text generation backend. The OpenAI-compatible endpoint wins
// when both keys are set.
type LLM struct {
	NvidiaAPIKey    string `env:"NVIDIA_API_KEY"`
	NvidiaBaseURL   string `env:"NVIDIA_BASE_URL" envDefault:"https://integrate.api.nvidia.com/v1"`
	NvidiaModel     string `env:"NVIDIA_MODEL" envDefault:"nvidia/nemotron-mini-4b-instruct"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL"`
}

// Narrator builds the narrator for the configured backend. With no keys set it
// returns a fallback-only narrator.
func (c LLM) Narrator() *llm.Narrator {
	if client := llm.NewOpenAIClient(c.NvidiaAPIKey, c.NvidiaBaseURL, c.NvidiaModel); client != nil {
		return llm.NewNarrator(client, c.NvidiaModel)
	}
	if client := llm.NewAnthropicClient(c.AnthropicAPIKey); client != nil {
		return llm.NewNarrator(client, c.AnthropicModel)
	}
	return llm.NewNarrator(nil, "")
}

// Backend names the backend Narrator selects, for startup logs.
func (c LLM) Backend() string {
	switch {
	case c.NvidiaAPIKey != "":
		return "openai-compatible"
	case c.AnthropicAPIKey != "":
		return "anthropic"
	default:
		return "fallback"
	}
}

// Gamemaster configures cmd/gamemaster.
type Gamemaster struct {
	APIURL    string        `env:"GALAXY_API_URL" envDefault:"http://localhost:8080"`
	AdminKey  string        `env:"GALAXY_ADMIN_KEY,notEmpty"`
	SessionID string        `env:"GAMEMASTER_SESSION,notEmpty"`
	Interval  time.Duration `env:"GAMEMASTER_INTERVAL" envDefault:"6h"`
	// MaxAdvance caps how much galactic time one cycle may pass.
	MaxAdvance string `env:"GAMEMASTER_MAX_ADVANCE" envDefault:"1 month"`
	MemoryPath string `env:"GAMEMASTER_MEMORY" envDefault:"gamemaster_memory.json"`

	LLM LLM
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer reads and validates the server configuration.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DBDSN == "" {
			return cfg, fmt.Errorf("GALAXY_DB_DSN is required for the %s driver", DriverPostgres)
		}
	default:
		return cfg, fmt.Errorf("unknown GALAXY_DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

// LoadGamemaster reads the gamemaster configuration.
func LoadGamemaster() (Gamemaster, error) {
	var cfg Gamemaster
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
