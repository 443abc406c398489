// Package config loads service configuration from an optional YAML file with
// environment variable overrides for credentials and endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Config is the root configuration shared by the horizon commands.
	Config struct {
		// Live configures the host-side live server.
		Live Live `yaml:"live"`
		// Specialist configures a specialist agent server.
		Specialist Specialist `yaml:"specialist"`
	}

	// Live configures the live session server.
	Live struct {
		// Addr is the HTTP listen address.
		Addr string `yaml:"addr"`
		// Model is the Gemini live model name.
		Model string `yaml:"model"`
		// GeminiAPIKey authenticates against the Gemini API. Overridden by
		// GEMINI_API_KEY.
		GeminiAPIKey string `yaml:"gemini_api_key"`
		// Specialists lists the base URLs to discover specialist agents at.
		Specialists []string `yaml:"specialists"`
		// DiscoveryTTL is how long discovered agent cards stay fresh.
		DiscoveryTTL time.Duration `yaml:"discovery_ttl"`
		// Mongo configures the durable session store. When the URI is empty
		// sessions are kept in memory.
		Mongo Mongo `yaml:"mongo"`
		// Redis configures the shared agent card cache. When the address is
		// empty cards are cached in memory.
		Redis Redis `yaml:"redis"`
	}

	// Mongo configures the MongoDB session backend.
	Mongo struct {
		// URI is the connection string. Overridden by MONGO_URI.
		URI string `yaml:"uri"`
		// Database is the database name.
		Database string `yaml:"database"`
	}

	// Redis configures the Redis cache backend.
	Redis struct {
		// Addr is the host:port of the Redis server. Overridden by
		// REDIS_ADDR.
		Addr string `yaml:"addr"`
	}

	// Specialist configures one specialist agent server.
	Specialist struct {
		// Addr is the HTTP listen address.
		Addr string `yaml:"addr"`
		// Name is the agent's card name.
		Name string `yaml:"name"`
		// Description is the agent's card description.
		Description string `yaml:"description"`
		// PublicURL is the externally reachable base URL advertised in the
		// agent card.
		PublicURL string `yaml:"public_url"`
		// Worker configures how the agent reaches its MCP worker.
		Worker Worker `yaml:"worker"`
		// RateLimit is the sustained tasks/send requests per second the
		// server accepts. Zero disables throttling.
		RateLimit float64 `yaml:"rate_limit"`
		// RateBurst is the throttle's burst allowance.
		RateBurst int `yaml:"rate_burst"`
	}

	// Worker configures the MCP worker transport. Exactly one of Command
	// and Endpoint should be set: Command spawns a stdio subprocess per
	// task, Endpoint posts to a running HTTP worker.
	Worker struct {
		// Command is the worker executable for the stdio transport.
		Command string `yaml:"command"`
		// Args are passed to Command.
		Args []string `yaml:"args"`
		// Endpoint is the URL of an HTTP worker.
		Endpoint string `yaml:"endpoint"`
		// Tool is the worker tool invoked per task.
		Tool string `yaml:"tool"`
		// ArgName is the tool argument the task's query is bound to.
		ArgName string `yaml:"arg_name"`
		// ResultArtifact names the artifact successful results attach as.
		ResultArtifact string `yaml:"result_artifact"`
	}
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Live: Live{
			Addr:         ":8080",
			Model:        "gemini-2.0-flash-live-001",
			DiscoveryTTL: 5 * time.Minute,
			Mongo:        Mongo{Database: "horizon"},
		},
		Specialist: Specialist{
			Addr:      ":8001",
			Name:      "Quote Agent",
			RateLimit: 10,
			RateBurst: 20,
			Worker: Worker{
				Tool:           "get_quote",
				ArgName:        "symbol",
				ResultArtifact: "quote_data",
			},
		},
	}
}

// Load reads the configuration file at path (optional) on top of defaults
// and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Live.GeminiAPIKey = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Live.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Live.Redis.Addr = v
	}
}
