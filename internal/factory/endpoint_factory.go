package factory

import (
	"fmt"

	"github.com/mikey/social-ads-predictor/internal/adapters/endpoint"
	"github.com/mikey/social-ads-predictor/internal/config"
	"github.com/mikey/social-ads-predictor/internal/ports"
	"go.uber.org/zap"
)

// EndpointFactory creates prediction endpoints based on configuration
type EndpointFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	predictor ports.Predictor
}

// NewEndpointFactory creates a new endpoint factory
func NewEndpointFactory(cfg *config.Config, logger *zap.Logger, predictor ports.Predictor) *EndpointFactory {
	return &EndpointFactory{
		cfg:       cfg,
		logger:    logger,
		predictor: predictor,
	}
}

// CreatePredictionEndpoint creates a prediction endpoint based on the configuration
func (f *EndpointFactory) CreatePredictionEndpoint() (ports.PredictionEndpoint, error) {
	sc, err := f.cfg.GetServer()
	if err != nil {
		return nil, err
	}

	switch sc.EndpointType {
	case "http":
		return endpoint.NewHTTPEndpoint(
			f.predictor,
			f.logger,
			sc.ListenAddress,
			sc.ReadTimeout,
			sc.WriteTimeout,
			sc.ShutdownTimeout,
		), nil
	case "cli":
		return endpoint.NewCliEndpoint(
			f.predictor,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported endpoint type: %s", sc.EndpointType)
	}
}
