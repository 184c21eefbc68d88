package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
)

// Error kinds reported to clients
const (
	KindInvalidInput = "invalid_input"
	KindInference    = "inference"
	KindInternal     = "internal"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// predictRequest accepts the bare record or the {"input_data": {...}} envelope
type predictRequest struct {
	InputData *core.PredictionInput `json:"input_data"`
	core.PredictionInput
}

// HTTPEndpoint serves predictions over HTTP
type HTTPEndpoint struct {
	predictor       ports.Predictor
	logger          *zap.Logger
	listenAddr      string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	router          *mux.Router
	registry        *prometheus.Registry
	metrics         *httpMetrics
	server          *http.Server
	listener        net.Listener
	serveErr        chan error
}

type httpMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	predictions *prometheus.CounterVec
}

func newHTTPMetrics(registry *prometheus.Registry) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Number of HTTP requests by route and status.",
		}, []string{"path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Number of predictions by result.",
		}, []string{"result"}),
	}
	registry.MustRegister(
		m.requests,
		m.duration,
		m.predictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// NewHTTPEndpoint creates a new HTTP endpoint
func NewHTTPEndpoint(
	predictor ports.Predictor,
	logger *zap.Logger,
	listenAddr string,
	readTimeout time.Duration,
	writeTimeout time.Duration,
	shutdownTimeout time.Duration,
) *HTTPEndpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	e := &HTTPEndpoint{
		predictor:       predictor,
		logger:          logger,
		listenAddr:      listenAddr,
		readTimeout:     readTimeout,
		writeTimeout:    writeTimeout,
		shutdownTimeout: shutdownTimeout,
		registry:        registry,
		metrics:         newHTTPMetrics(registry),
		serveErr:        make(chan error, 1),
	}
	e.router = e.newRouter()
	return e
}

func (e *HTTPEndpoint) newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(e.recoveryMiddleware, e.loggingMiddleware, e.metricsMiddleware)

	router.HandleFunc("/predict", e.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/healthz", e.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/artifact", e.handleArtifact).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

// Handler returns the HTTP handler of the endpoint
func (e *HTTPEndpoint) Handler() http.Handler {
	return e.router
}

// Process answers one prediction request
func (e *HTTPEndpoint) Process(ctx context.Context, input core.PredictionInput) (*core.PredictionResponse, error) {
	resp, err := e.predictor.Handle(ctx, input)
	if err != nil {
		return nil, err
	}
	e.metrics.predictions.WithLabelValues(resp.Result).Inc()
	return resp, nil
}

// Start listens on the configured address and serves in the background
func (e *HTTPEndpoint) Start() error {
	l, err := net.Listen("tcp", e.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.listenAddr, err)
	}
	e.listener = l
	e.server = &http.Server{
		Handler:      e.router,
		ReadTimeout:  e.readTimeout,
		WriteTimeout: e.writeTimeout,
	}

	go func() {
		if err := e.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
			e.serveErr <- fmt.Errorf("HTTP server stopped: %w", err)
		}
	}()

	a := e.predictor.Artifact()
	e.logger.Info("Started HTTP endpoint",
		zap.String("listen_address", l.Addr().String()),
		zap.String("artifact", a.String()))
	return nil
}

// Errors delivers the error that stopped the server outside of Stop
func (e *HTTPEndpoint) Errors() <-chan error {
	return e.serveErr
}

// Addr returns the address the endpoint listens on, once started
func (e *HTTPEndpoint) Addr() string {
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Stop gracefully shuts the server down
func (e *HTTPEndpoint) Stop() error {
	if e.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.shutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	e.logger.Info("Stopped HTTP endpoint")
	return nil
}

func (e *HTTPEndpoint) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		e.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Kind:  KindInvalidInput,
		})
		return
	}

	input := req.PredictionInput
	if req.InputData != nil {
		input = *req.InputData
	}

	resp, err := e.Process(r.Context(), input)
	if err != nil {
		e.writeError(w, r, err)
		return
	}
	e.writeJSON(w, http.StatusOK, resp)
}

func (e *HTTPEndpoint) handleHealth(w http.ResponseWriter, r *http.Request) {
	e.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"artifact": e.predictor.Artifact().String(),
	})
}

type artifactInfo struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	Backend      string    `json:"backend"`
	TrainSamples int       `json:"train_samples"`
	TestSamples  int       `json:"test_samples"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
}

func (e *HTTPEndpoint) handleArtifact(w http.ResponseWriter, r *http.Request) {
	a := e.predictor.Artifact()
	m := e.predictor.Metrics()
	e.writeJSON(w, http.StatusOK, artifactInfo{
		Name:         a.Name,
		Version:      a.Version,
		Size:         a.Size,
		CreatedAt:    a.CreatedAt,
		Backend:      e.predictor.Backend(),
		TrainSamples: m.TrainSamples,
		TestSamples:  m.TestSamples,
		Accuracy:     m.Accuracy,
		Precision:    m.Precision,
		Recall:       m.Recall,
	})
}

func (e *HTTPEndpoint) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *core.InputError
	switch {
	case errors.As(err, &inputErr):
		e.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: inputErr.Error(),
			Kind:  KindInvalidInput,
			Field: inputErr.Field,
		})
	case errors.Is(err, core.ErrInvalidInput):
		e.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindInvalidInput})
	case errors.Is(err, core.ErrInferenceExecution):
		e.logger.Error("Inference failed",
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		e.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: KindInference})
	default:
		e.logger.Error("Request failed",
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		e.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: KindInternal})
	}
}

func (e *HTTPEndpoint) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		e.logger.Warn("Failed to write response", zap.Error(err))
	}
}

// statusWriter captures the status code of a response
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func (e *HTTPEndpoint) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		e.logger.Info("Handled request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (e *HTTPEndpoint) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		timer := prometheus.NewTimer(e.metrics.duration.WithLabelValues(path))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		timer.ObserveDuration()
		e.metrics.requests.WithLabelValues(path, strconv.Itoa(sw.status)).Inc()
	})
}

func (e *HTTPEndpoint) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				e.logger.Error("Recovered from panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"))
				e.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: KindInternal})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
