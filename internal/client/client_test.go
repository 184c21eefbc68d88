package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func input() core.PredictionInput {
	gender := "Male"
	return core.PredictionInput{
		Gender: &gender,
		Age:    core.NumericFromFloat(30),
		Salary: core.NumericFromFloat(87000),
	}
}

func TestPredictValidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"input_data":{"Gender":"Male","Age":30,"Salary":87000}}`, string(body))

		json.NewEncoder(w).Encode(core.PredictionResponse{
			Prediction: 1,
			Result:     "Will Purchase",
			Backend:    "test",
		})
	}))
	defer server.Close()

	resp, err := New(server.URL+"/", time.Second, nil).Predict(context.Background(), input())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Prediction)
	assert.Equal(t, "Will Purchase", resp.Result)
}

func TestPredictRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid input: Gender: \"Other\" is not one of [Female Male]","kind":"invalid_input","field":"Gender"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second, nil).Predict(context.Background(), input())
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Equal(t, "invalid_input", rejected.Kind)
	assert.Equal(t, "Gender", rejected.Field)
	assert.False(t, errors.Is(err, ErrBackendUnreachable))
}

func TestPredictRejectedPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second, nil).Predict(context.Background(), input())
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusBadGateway, rejected.StatusCode)
	assert.Equal(t, "bad gateway", rejected.Message)
}

func TestPredictUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url, time.Second, nil).Predict(context.Background(), input())
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}
