// Package client calls a remote predictor over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikey/social-ads-predictor/internal/core"
	"go.uber.org/zap"
)

// ErrBackendUnreachable is returned when the predictor cannot be reached
var ErrBackendUnreachable = errors.New("prediction backend unreachable")

// RejectedError is returned when the predictor answers with an error status
type RejectedError struct {
	StatusCode int
	Kind       string
	Field      string
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("prediction rejected (%d %s): %s", e.StatusCode, e.Field, e.Message)
	}
	return fmt.Sprintf("prediction rejected (%d): %s", e.StatusCode, e.Message)
}

// Client posts prediction requests to a predictor's HTTP endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client for the predictor at baseURL
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Predict sends one record wrapped in the input_data envelope
func (c *Client) Predict(ctx context.Context, input core.PredictionInput) (*core.PredictionResponse, error) {
	body, err := json.Marshal(map[string]core.PredictionInput{"input_data": input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Predictor request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrBackendUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		rejected := &RejectedError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var body struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
			Field string `json:"field"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			rejected.Message = body.Error
			rejected.Kind = body.Kind
			rejected.Field = body.Field
		}
		return nil, rejected
	}

	var out core.PredictionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return &out, nil
}
