package core

import (
	"context"
	"fmt"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/graph"
	"github.com/mikey/social-ads-predictor/internal/vocabulary"
	"go.uber.org/zap"
)

// DefaultBackendName is reported in responses unless configured otherwise
const DefaultBackendName = "Linear SVC graph session"

// Predictor answers single-record predictions from one loaded artifact.
// It is immutable after construction and safe for concurrent use.
type Predictor struct {
	meta    artifact.Handle
	metrics artifact.Metrics
	encoder *features.Encoder
	scaler  features.ScalerParams
	session *graph.Session
	backend string
	gender  *vocabulary.Vocabulary
	logger  *zap.Logger
}

// PredictorOption customizes a Predictor
type PredictorOption func(*Predictor)

// WithBackendName sets the backend name reported in verdicts
func WithBackendName(name string) PredictorOption {
	return func(p *Predictor) {
		if name != "" {
			p.backend = name
		}
	}
}

// WithVocabulary sets the gender vocabulary used to encode requests
func WithVocabulary(v *vocabulary.Vocabulary) PredictorOption {
	return func(p *Predictor) {
		if v != nil {
			p.gender = v
		}
	}
}

// NewPredictor loads the referenced artifact from the store and prepares it for serving
func NewPredictor(ctx context.Context, store ArtifactStore, ref artifact.Ref, logger *zap.Logger, opts ...PredictorOption) (*Predictor, error) {
	a, err := store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact %s: %w", ref, err)
	}
	return LoadPredictor(a, logger, opts...)
}

// LoadPredictor prepares an already loaded artifact for serving
func LoadPredictor(a *artifact.Artifact, logger *zap.Logger, opts ...PredictorOption) (*Predictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !features.SameOrder(a.FeatureOrder, features.FeatureOrder()) {
		return nil, fmt.Errorf("%w: feature order %v, want %v", ErrArtifactCorrupt, a.FeatureOrder, features.FeatureOrder())
	}
	if err := a.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupt, err)
	}
	if !features.SameOrder(a.Scaler.Features, a.FeatureOrder) {
		return nil, fmt.Errorf("%w: scaler features %v do not match feature order", ErrArtifactCorrupt, a.Scaler.Features)
	}

	g, err := graph.Unmarshal(a.Graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupt, err)
	}
	session, err := graph.NewSession(g, len(a.FeatureOrder))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupt, err)
	}
	if session.InputName() != graph.InputName {
		return nil, fmt.Errorf("%w: graph input is %q, want %q", ErrArtifactCorrupt, session.InputName(), graph.InputName)
	}

	p := &Predictor{
		meta:    a.Handle(int64(len(a.Graph))),
		metrics: a.Metrics,
		scaler:  a.Scaler,
		session: session,
		backend: DefaultBackendName,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.gender == nil {
		p.gender = vocabulary.NewGender(nil, logger)
	}

	p.encoder, err = features.NewEncoder(a.FeatureOrder, p.gender)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupt, err)
	}

	logger.Info("Loaded artifact",
		zap.String("name", a.Name),
		zap.String("version", a.Version),
		zap.Time("created_at", a.CreatedAt),
		zap.Float64("accuracy", a.Metrics.Accuracy))
	return p, nil
}

// Artifact returns the handle of the loaded artifact
func (p *Predictor) Artifact() artifact.Handle {
	return p.meta
}

// Metrics returns the evaluation recorded when the artifact was trained
func (p *Predictor) Metrics() artifact.Metrics {
	return p.metrics
}

// Backend returns the backend name reported in verdicts
func (p *Predictor) Backend() string {
	return p.backend
}

// Predict encodes, scales and classifies one record
func (p *Predictor) Predict(ctx context.Context, record features.FeatureRecord) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec, err := p.encoder.Encode(record)
	if err != nil {
		return nil, err
	}
	scaled, err := p.scaler.Transform(vec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInferenceExecution, err)
	}

	label, score, err := p.session.Classify(scaled)
	if err != nil {
		p.logger.Error("Classifier graph failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInferenceExecution, err)
	}

	p.logger.Debug("Classified record",
		zap.String("gender", record.Gender),
		zap.Float64("age", record.Age),
		zap.Float64("salary", record.Salary),
		zap.Int("label", label),
		zap.Float64("score", score))

	return &Verdict{
		Label:    Label(label),
		RawScore: score,
		Backend:  p.backend,
	}, nil
}

// Handle validates a request payload, predicts and formats the response
func (p *Predictor) Handle(ctx context.Context, input PredictionInput) (*PredictionResponse, error) {
	record, err := ToRecord(input)
	if err != nil {
		return nil, err
	}

	verdict, err := p.Predict(ctx, record)
	if err != nil {
		return nil, err
	}

	return &PredictionResponse{
		Prediction:      int(verdict.Label),
		Result:          verdict.Label.String(),
		Backend:         verdict.Backend,
		Score:           verdict.RawScore,
		ArtifactVersion: p.meta.Version,
	}, nil
}

// ToRecord checks that every field is present and numeric
func ToRecord(input PredictionInput) (features.FeatureRecord, error) {
	if input.Gender == nil {
		return features.FeatureRecord{}, &InputError{Field: features.Gender, Reason: "is required"}
	}
	if input.Age == nil {
		return features.FeatureRecord{}, &InputError{Field: features.Age, Reason: "is required"}
	}
	if input.Salary == nil {
		return features.FeatureRecord{}, &InputError{Field: features.SalaryField, Reason: "is required"}
	}

	age, err := input.Age.Float()
	if err != nil {
		return features.FeatureRecord{}, &InputError{Field: features.Age, Reason: err.Error()}
	}
	salary, err := input.Salary.Float()
	if err != nil {
		return features.FeatureRecord{}, &InputError{Field: features.SalaryField, Reason: err.Error()}
	}

	return features.FeatureRecord{
		Gender: *input.Gender,
		Age:    age,
		Salary: salary,
	}, nil
}
