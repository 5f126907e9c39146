package bootstrap

import (
	"strings"

	"mev_engine/pkg/logging"
)

// InitLogger builds the zap logger for the configured level and installs it globally
func InitLogger(cfg *Config) (*logging.ZapLogger, error) {
	logger, err := logging.NewZapLogger(strings.ToUpper(cfg.System.LogLevel))
	if err != nil {
		return nil, err
	}
	logging.SetGlobalLogger(logger)
	return logger, nil
}
