package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/graph"
	"github.com/mikey/social-ads-predictor/internal/svm"
	"go.uber.org/zap"
)

const graphProducer = "social-ads-predictor trainer"

// TrainingConfig holds the parameters of a training run
type TrainingConfig struct {
	ArtifactName string
	TestRatio    float64
	Seed         int64
	SVM          svm.Params
}

// TrainingService fits the scaler and classifier and publishes an artifact
type TrainingService struct {
	dataset DatasetSource
	store   ArtifactStore
	encoder *features.Encoder
	config  TrainingConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewTrainingService creates a new training service
func NewTrainingService(
	dataset DatasetSource,
	store ArtifactStore,
	encoder *features.Encoder,
	config TrainingConfig,
	logger *zap.Logger,
) *TrainingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{
		dataset: dataset,
		store:   store,
		encoder: encoder,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Train runs the whole pipeline: load, encode, split, scale, fit, evaluate,
// export and save. Nothing is written unless every step succeeds.
func (s *TrainingService) Train(ctx context.Context) (*artifact.Handle, error) {
	if err := artifact.ValidateName(s.config.ArtifactName); err != nil {
		return nil, err
	}
	if s.config.TestRatio < 0 || s.config.TestRatio >= 1 || math.IsNaN(s.config.TestRatio) {
		return nil, fmt.Errorf("test ratio must be in [0, 1), got %v", s.config.TestRatio)
	}

	records, err := s.dataset.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrDataLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDataLoad, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", ErrDataLoad)
	}

	x := make([][]float64, len(records))
	y := make([]int, len(records))
	for i, r := range records {
		vec, err := s.encoder.Encode(r.Record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrDataLoad, r.Line, err)
		}
		if r.Label != 0 && r.Label != 1 {
			return nil, fmt.Errorf("%w: line %d: label %d is not 0 or 1", ErrDataLoad, r.Line, r.Label)
		}
		x[i] = vec
		y[i] = r.Label
	}

	trainIdx, testIdx := Split(len(records), s.config.TestRatio, s.config.Seed)
	s.logger.Info("Split training data",
		zap.Int("rows", len(records)),
		zap.Int("train", len(trainIdx)),
		zap.Int("test", len(testIdx)),
		zap.Int64("seed", s.config.Seed))

	trainX, trainY := subset(x, y, trainIdx)
	scaler, err := features.FitScaler(trainX, s.encoder.Order())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}
	scaledTrain, err := scaler.TransformAll(trainX)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := svm.Fit(scaledTrain, trainY, s.config.SVM)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}
	s.logger.Info("Fitted linear classifier",
		zap.Float64s("weights", model.Weights),
		zap.Float64("bias", model.Bias),
		zap.Int("iterations", model.Iterations),
		zap.Bool("converged", model.Converged))
	if !model.Converged {
		s.logger.Warn("Solver stopped before converging",
			zap.Int("max_iterations", s.config.SVM.MaxIterations))
	}

	g := graph.ExportLinear(model.Weights, model.Bias, graphProducer)
	session, err := graph.NewSession(g, scaler.Width())
	if err != nil {
		return nil, fmt.Errorf("%w: exported graph is invalid: %w", ErrFit, err)
	}

	testX, testY := subset(x, y, testIdx)
	scaledTest, err := scaler.TransformAll(testX)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}
	metrics, err := Evaluate(session, scaledTest, testY)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}
	metrics.TrainSamples = len(trainIdx)
	s.logger.Info("Evaluated classifier on held-out data",
		zap.Int("samples", metrics.TestSamples),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("precision", metrics.Precision),
		zap.Float64("recall", metrics.Recall))

	a, err := artifact.New(s.config.ArtifactName, graph.Marshal(g), scaler, s.encoder.Order(), metrics, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	handle, err := s.store.Save(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}
	s.logger.Info("Saved artifact",
		zap.String("name", handle.Name),
		zap.String("version", handle.Version),
		zap.Int64("size", handle.Size))
	return handle, nil
}

// Split returns a deterministic train/test partition of n row indices.
// The first ceil(ratio*n) indices of a seeded permutation are held out.
func Split(n int, ratio float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	held := int(math.Ceil(ratio * float64(n)))
	if held > n {
		held = n
	}
	return perm[held:], perm[:held]
}

// Evaluate computes accuracy, precision and recall of the session's labels.
// An empty set yields zero metrics.
func Evaluate(session *graph.Session, x [][]float64, y []int) (artifact.Metrics, error) {
	metrics := artifact.Metrics{TestSamples: len(x)}
	if len(x) == 0 {
		return metrics, nil
	}

	var correct, tp, fp, fn int
	for i, row := range x {
		label, _, err := session.Classify(row)
		if err != nil {
			return metrics, err
		}
		switch {
		case label == y[i]:
			correct++
			if label == 1 {
				tp++
			}
		case label == 1:
			fp++
		default:
			fn++
		}
	}

	metrics.Accuracy = float64(correct) / float64(len(x))
	if tp+fp > 0 {
		metrics.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		metrics.Recall = float64(tp) / float64(tp+fn)
	}
	return metrics, nil
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	sx := make([][]float64, len(idx))
	sy := make([]int, len(idx))
	for i, j := range idx {
		sx[i] = x[j]
		sy[i] = y[j]
	}
	return sx, sy
}
