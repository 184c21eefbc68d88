// Package endpoint exposes the predictor to callers.
package endpoint

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/ports"
	"go.uber.org/zap"
)

// CliEndpoint answers one prediction and prints a summary
type CliEndpoint struct {
	predictor ports.Predictor
	logger    *zap.Logger
	out       io.Writer
	verbose   bool
}

// NewCliEndpoint creates a new CLI endpoint writing to stdout
func NewCliEndpoint(predictor ports.Predictor, logger *zap.Logger, verbose bool) *CliEndpoint {
	return NewCliEndpointWithWriter(predictor, logger, os.Stdout, verbose)
}

// NewCliEndpointWithWriter creates a new CLI endpoint writing to out
func NewCliEndpointWithWriter(predictor ports.Predictor, logger *zap.Logger, out io.Writer, verbose bool) *CliEndpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CliEndpoint{
		predictor: predictor,
		logger:    logger,
		out:       out,
		verbose:   verbose,
	}
}

// Process predicts one record and displays the result
func (e *CliEndpoint) Process(ctx context.Context, input core.PredictionInput) (*core.PredictionResponse, error) {
	fmt.Fprintf(e.out, "\n=== Customer ===\n")
	fmt.Fprintf(e.out, "Gender: %s\n", stringOrMissing(input.Gender))
	fmt.Fprintf(e.out, "Age: %s\n", numericOrMissing(input.Age))
	fmt.Fprintf(e.out, "Salary: %s\n", numericOrMissing(input.Salary))

	if e.verbose {
		a := e.predictor.Artifact()
		m := e.predictor.Metrics()
		fmt.Fprintf(e.out, "\n=== Artifact ===\n")
		fmt.Fprintf(e.out, "Artifact: %s\n", a)
		fmt.Fprintf(e.out, "Trained: %s\n", a.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(e.out, "Held-out accuracy: %.4f (%d samples)\n", m.Accuracy, m.TestSamples)
	}

	startTime := time.Now()
	resp, err := e.predictor.Handle(ctx, input)
	if err != nil {
		e.logger.Debug("Prediction failed", zap.Error(err))
		fmt.Fprintf(e.out, "\nError: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Fprintf(e.out, "\n=== Results ===\n")
	fmt.Fprintf(e.out, "Prediction: %d\n", resp.Prediction)
	fmt.Fprintf(e.out, "Result: %s\n", resp.Result)
	fmt.Fprintf(e.out, "Score: %.4f\n", resp.Score)
	fmt.Fprintf(e.out, "Backend: %s\n", resp.Backend)
	if e.verbose {
		fmt.Fprintf(e.out, "Processing time: %v\n", duration)
	}

	return resp, nil
}

// Start is a no-op for the CLI endpoint
func (e *CliEndpoint) Start() error {
	return nil
}

// Stop is a no-op for the CLI endpoint
func (e *CliEndpoint) Stop() error {
	return nil
}

func stringOrMissing(s *string) string {
	if s == nil {
		return "<missing>"
	}
	return *s
}

func numericOrMissing(n *core.Numeric) string {
	if n == nil {
		return "<missing>"
	}
	return n.String()
}
