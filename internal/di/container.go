package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/social-ads-predictor/internal/config"
	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/factory"
	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/logging"
	"github.com/mikey/social-ads-predictor/internal/ports"
	"github.com/mikey/social-ads-predictor/internal/vocabulary"
)

// Options selects the configuration file and overrides individual keys
type Options struct {
	ConfigFile string
	Overrides  map[string]interface{}
}

// BuildContainer creates and configures a dependency injection container
// for the long running prediction service
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return loadConfig(opts)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideServing(container); err != nil {
		return nil, err
	}
	return container, nil
}

func loadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.NewFromFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	for key, value := range opts.Overrides {
		cfg.Set(key, value)
	}
	return cfg, nil
}

// provideStorage registers the text processing and artifact store providers
// shared by every container
func provideStorage(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register artifact store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ArtifactStore, error) {
		return f.CreateArtifactStore(context.Background())
	}); err != nil {
		return err
	}

	// Register gender vocabulary and encoder
	if err := container.Provide(func(f *factory.TextProcessorFactory) *vocabulary.Vocabulary {
		return f.CreateGenderVocabulary()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) (*features.Encoder, error) {
		return f.CreateEncoder()
	}); err != nil {
		return err
	}
	return nil
}

// provideServing registers the predictor and the prediction endpoint
func provideServing(container *dig.Container) error {
	if err := provideStorage(container); err != nil {
		return err
	}

	// Register predictor
	if err := container.Provide(func(
		cfg *config.Config,
		store core.ArtifactStore,
		gender *vocabulary.Vocabulary,
		logger *zap.Logger,
	) (*core.Predictor, error) {
		ref, err := cfg.GetArtifactRef()
		if err != nil {
			return nil, err
		}
		return core.NewPredictor(context.Background(), store, ref, logger,
			core.WithBackendName(cfg.GetString("server.backend_name")),
			core.WithVocabulary(gender))
	}); err != nil {
		return err
	}
	if err := container.Provide(func(p *core.Predictor) ports.Predictor {
		return p
	}); err != nil {
		return err
	}

	// Register prediction endpoint
	if err := container.Provide(factory.NewEndpointFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EndpointFactory) (ports.PredictionEndpoint, error) {
		return f.CreatePredictionEndpoint()
	}); err != nil {
		return err
	}
	return nil
}
