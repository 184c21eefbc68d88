package core

import (
	"errors"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/mikey/social-ads-predictor/internal/features"
)

var (
	// ErrDataLoad is returned when the training data cannot be read or parsed
	ErrDataLoad = errors.New("failed to load training data")
	// ErrFit is returned when a model cannot be fitted
	ErrFit = errors.New("failed to fit model")
	// ErrArtifactNotFound is returned when the requested artifact does not exist
	ErrArtifactNotFound = artifact.ErrNotFound
	// ErrArtifactCorrupt is returned when a loaded artifact cannot be used
	ErrArtifactCorrupt = artifact.ErrCorrupt
	// ErrInvalidInput is returned when a prediction request is malformed
	ErrInvalidInput = features.ErrInvalidInput
	// ErrInferenceExecution is returned when the classifier graph fails to run
	ErrInferenceExecution = errors.New("inference failed")
)

// InputError names the request field that was rejected
type InputError = features.InputError
