package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/social-ads-predictor/internal/config"
	"github.com/mikey/social-ads-predictor/internal/logging"
)

// CLIFlags contains the command line flags shared by the CLI applications
type CLIFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool

	// Overrides are applied on top of the loaded configuration
	Overrides map[string]interface{}
}

// BuildCLIContainer creates a container for one-shot predictions.
// Logs go to the console and the endpoint is always the CLI one.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := loadConfig(Options{ConfigFile: flags.ConfigFile, Overrides: flags.Overrides})
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}

		// Set some cli specific settings
		cfg.Set("server.endpoint_type", "cli")
		cfg.Set("cli.verbose", flags.Verbose)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideServing(container); err != nil {
		return nil, err
	}
	return container, nil
}
