package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/social-ads-predictor/internal/config"
	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/factory"
	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/logging"
)

// BuildTrainerContainer creates a container for the offline training job
func BuildTrainerContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(flags *CLIFlags) (*config.Config, error) {
		return loadConfig(Options{ConfigFile: flags.ConfigFile, Overrides: flags.Overrides})
	}); err != nil {
		return nil, err
	}

	if err := provideStorage(container); err != nil {
		return nil, err
	}

	// Register dataset source
	if err := container.Provide(factory.NewDatasetFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DatasetFactory) core.DatasetSource {
		return f.CreateDatasetSource()
	}); err != nil {
		return nil, err
	}

	// Register training service
	if err := container.Provide(func(
		dataset core.DatasetSource,
		store core.ArtifactStore,
		encoder *features.Encoder,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.TrainingService {
		return core.NewTrainingService(dataset, store, encoder, cfg.GetTraining(), logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
