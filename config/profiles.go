package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the built-in configuration for a named deployment profile.
// Environment variables are not applied; callers overlay them with ParseEnv if needed.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch name {
	case "development":
		cfg.Environment = EnvDevelopment
		cfg.Server.Address = ":3001"
		cfg.Storage.Adapter = AdapterMemory
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	case "testing":
		cfg.Environment = EnvTesting
		cfg.Storage.Adapter = AdapterMemory
		cfg.Realtime.DispatchMode = "sync"
		cfg.Logging.Level = "warn"
	case "staging":
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = AdapterRedis
		cfg.Storage.Redis.KeyPrefix = "staging:"
	case "production":
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = AdapterRedis
		cfg.Server.CORSOrigin = ""
		cfg.Server.ReadTimeout = 5 * time.Second
		cfg.Server.WriteTimeout = 5 * time.Second
		cfg.Logging.Level = "warn"
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	return cfg, nil
}
