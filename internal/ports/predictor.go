package ports

import (
	"context"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/mikey/social-ads-predictor/internal/core"
)

// Predictor is the part of the core predictor the endpoints depend on
type Predictor interface {
	// Handle validates a request and returns the formatted verdict
	Handle(ctx context.Context, input core.PredictionInput) (*core.PredictionResponse, error)

	// Artifact returns the handle of the loaded artifact
	Artifact() artifact.Handle

	// Metrics returns the evaluation recorded at training time
	Metrics() artifact.Metrics

	// Backend returns the name reported in responses
	Backend() string
}

var _ Predictor = (*core.Predictor)(nil)
