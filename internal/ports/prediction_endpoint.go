package ports

import (
	"context"

	"github.com/mikey/social-ads-predictor/internal/core"
)

// PredictionEndpoint defines the interface for serving predictions
type PredictionEndpoint interface {
	// Process answers one prediction request
	Process(ctx context.Context, input core.PredictionInput) (*core.PredictionResponse, error)

	// Start starts the endpoint
	Start() error

	// Stop stops the endpoint
	Stop() error
}
