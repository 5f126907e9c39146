package bootstrap

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"mev_engine/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader and then checks the
// environment the config points at.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *Config) error {
	if cfg.App.StoreDriver == "sqlite" {
		dir := filepath.Dir(cfg.App.StorePath)
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("store directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("store directory %s is not a directory", dir)
		}
	}

	if cfg.App.EngineType == "dbos" {
		u, err := url.Parse(cfg.App.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database_url: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("database_url must be a postgres url, got scheme %q", u.Scheme)
		}
	}

	return nil
}
