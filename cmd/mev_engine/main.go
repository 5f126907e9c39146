package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"mev_engine/internal/bootstrap"
	"mev_engine/internal/config"
)

var (
	// set via -ldflags
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mev_engine version %s (built %s)\n", version, buildTime)
		return
	}
	if env := os.Getenv("CONFIG_FILE"); env != "" {
		*configPath = env
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}

// loadConfig falls back to the built-in defaults when no file exists
func loadConfig(path string) (*bootstrap.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Config file %s not found, using defaults\n", path)
		return config.DefaultConfig(), nil
	}
	return bootstrap.LoadConfig(path)
}
