package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/svm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps encoded artifacts in memory so tests exercise the envelope
type fakeStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	latest  map[string]string
	saves   int
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blobs:  make(map[string][]byte),
		latest: make(map[string]string),
	}
}

func (s *fakeStore) Get(_ context.Context, ref artifact.Ref) (*artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := ref.Tag
	if ref.IsLatest() {
		v, ok := s.latest[ref.Name]
		if !ok {
			return nil, artifact.ErrNotFound
		}
		version = v
	}
	b, ok := s.blobs[ref.Name+":"+version]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return artifact.Decode(b)
}

func (s *fakeStore) Save(_ context.Context, a *artifact.Artifact) (*artifact.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	b := artifact.Encode(a)
	s.blobs[a.Name+":"+a.Version] = b
	s.latest[a.Name] = a.Version
	h := a.Handle(int64(len(b)))
	return &h, nil
}

func (s *fakeStore) List(_ context.Context, name string) ([]artifact.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []artifact.Handle
	for _, b := range s.blobs {
		a, err := artifact.Decode(b)
		if err != nil {
			return nil, err
		}
		if a.Name == name {
			out = append(out, a.Handle(int64(len(b))))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type staticDataset struct {
	records []TrainingRecord
	err     error
}

func (d staticDataset) Load(context.Context) ([]TrainingRecord, error) {
	return d.records, d.err
}

func record(gender string, age, salary float64, label int) TrainingRecord {
	return TrainingRecord{
		Record: features.FeatureRecord{Gender: gender, Age: age, Salary: salary},
		Label:  label,
	}
}

// scenarioRecords is a small dataset where buyers are older and better paid
func scenarioRecords() []TrainingRecord {
	rows := []TrainingRecord{
		record("Male", 50, 95000, 1),
		record("Female", 48, 120000, 1),
		record("Male", 55, 80000, 1),
		record("Female", 60, 100000, 1),
		record("Male", 45, 140000, 1),
		record("Female", 20, 20000, 0),
		record("Male", 25, 30000, 0),
		record("Female", 30, 45000, 0),
		record("Male", 22, 60000, 0),
		record("Female", 35, 25000, 0),
	}
	for i := range rows {
		rows[i].Line = i + 2
	}
	return rows
}

// maleBuyerRecords labels only the Male rows older than 45 earning more than
// 90000 as buyers, so Gender has to carry weight
func maleBuyerRecords() []TrainingRecord {
	rows := []TrainingRecord{
		record("Male", 50, 95000, 1),
		record("Male", 55, 120000, 1),
		record("Male", 48, 100000, 1),
		record("Male", 60, 140000, 1),
		record("Female", 50, 95000, 0),
		record("Female", 20, 20000, 0),
		record("Male", 30, 95000, 0),
		record("Male", 50, 50000, 0),
		record("Female", 35, 40000, 0),
		record("Male", 25, 20000, 0),
	}
	for i := range rows {
		rows[i].Line = i + 2
	}
	return rows
}

func strPtr(s string) *string {
	return &s
}

func newTestTrainer(t *testing.T, dataset DatasetSource, store ArtifactStore, ratio float64) *TrainingService {
	t.Helper()
	encoder, err := features.NewEncoder(features.FeatureOrder(), nil)
	require.NoError(t, err)
	s := NewTrainingService(dataset, store, encoder, TrainingConfig{
		ArtifactName: "social_ads",
		TestRatio:    ratio,
		Seed:         0,
		SVM:          svm.DefaultParams(),
	}, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestSplitIsDeterministic(t *testing.T) {
	train1, test1 := Split(10, 0.25, 0)
	train2, test2 := Split(10, 0.25, 0)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
	assert.Len(t, test1, 3)
	assert.Len(t, train1, 7)

	all := append(append([]int(nil), train1...), test1...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	train, test := Split(10, 0, 0)
	assert.Len(t, train, 10)
	assert.Empty(t, test)
}

func TestTrainScenario(t *testing.T) {
	store := newFakeStore()
	trainer := newTestTrainer(t, staticDataset{records: scenarioRecords()}, store, 0)

	handle, err := trainer.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "social_ads", handle.Name)
	assert.Len(t, handle.Version, 16)
	assert.Equal(t, 1, store.saves)

	predictor, err := NewPredictor(context.Background(), store, artifact.Ref{Name: "social_ads", Tag: artifact.LatestTag}, nil)
	require.NoError(t, err)
	assert.Equal(t, handle.Version, predictor.Artifact().Version)
	assert.Equal(t, 10, predictor.Metrics().TrainSamples)
	assert.Equal(t, 0, predictor.Metrics().TestSamples)

	verdict, err := predictor.Predict(context.Background(), features.FeatureRecord{Gender: "Male", Age: 50, Salary: 95000})
	require.NoError(t, err)
	assert.Equal(t, WillPurchase, verdict.Label)
	assert.Greater(t, verdict.RawScore, 0.0)

	verdict, err = predictor.Predict(context.Background(), features.FeatureRecord{Gender: "Female", Age: 20, Salary: 20000})
	require.NoError(t, err)
	assert.Equal(t, WillNotPurchase, verdict.Label)
	assert.Less(t, verdict.RawScore, 0.0)
}

func TestTrainMaleBuyerScenario(t *testing.T) {
	for _, ratio := range []float64{0, 0.25} {
		t.Run(fmt.Sprintf("ratio %v", ratio), func(t *testing.T) {
			store := newFakeStore()
			_, err := newTestTrainer(t, staticDataset{records: maleBuyerRecords()}, store, ratio).Train(context.Background())
			require.NoError(t, err)

			predictor, err := NewPredictor(context.Background(), store, artifact.Ref{Name: "social_ads", Tag: artifact.LatestTag}, nil)
			require.NoError(t, err)

			resp, err := predictor.Handle(context.Background(), PredictionInput{
				Gender: strPtr("Male"),
				Age:    NumericFromFloat(50),
				Salary: NumericFromFloat(95000),
			})
			require.NoError(t, err)
			assert.Equal(t, 1, resp.Prediction)
			assert.Equal(t, "Will Purchase", resp.Result)

			resp, err = predictor.Handle(context.Background(), PredictionInput{
				Gender: strPtr("Female"),
				Age:    NumericFromFloat(20),
				Salary: NumericFromFloat(20000),
			})
			require.NoError(t, err)
			assert.Equal(t, 0, resp.Prediction)
			assert.Equal(t, "No Purchase", resp.Result)
		})
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	first, err := newTestTrainer(t, staticDataset{records: scenarioRecords()}, newFakeStore(), 0.25).Train(context.Background())
	require.NoError(t, err)
	second, err := newTestTrainer(t, staticDataset{records: scenarioRecords()}, newFakeStore(), 0.25).Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
}

func TestTrainRecordsHeldOutMetrics(t *testing.T) {
	records := scenarioRecords()
	records = append(records, scenarioRecords()...)
	store := newFakeStore()

	_, err := newTestTrainer(t, staticDataset{records: records}, store, 0.25).Train(context.Background())
	require.NoError(t, err)

	a, err := store.Get(context.Background(), artifact.Ref{Name: "social_ads", Tag: artifact.LatestTag})
	require.NoError(t, err)
	assert.Equal(t, 5, a.Metrics.TestSamples)
	assert.Equal(t, 15, a.Metrics.TrainSamples)
	assert.Equal(t, 15, a.Scaler.Samples)
	assert.GreaterOrEqual(t, a.Metrics.Accuracy, 0.0)
	assert.LessOrEqual(t, a.Metrics.Accuracy, 1.0)
}

func TestTrainFailuresWriteNothing(t *testing.T) {
	singleClass := []TrainingRecord{
		record("Male", 50, 95000, 1),
		record("Female", 48, 120000, 1),
		record("Male", 55, 80000, 1),
	}
	badGender := append(scenarioRecords(), record("Other", 40, 50000, 0))
	badLabel := append(scenarioRecords(), record("Male", 40, 50000, 2))

	tests := []struct {
		name    string
		dataset staticDataset
		wantErr error
	}{
		{name: "load error", dataset: staticDataset{err: errors.New("file not found")}, wantErr: ErrDataLoad},
		{name: "empty", dataset: staticDataset{}, wantErr: ErrDataLoad},
		{name: "unknown gender", dataset: staticDataset{records: badGender}, wantErr: ErrDataLoad},
		{name: "bad label", dataset: staticDataset{records: badLabel}, wantErr: ErrDataLoad},
		{name: "single class", dataset: staticDataset{records: singleClass}, wantErr: ErrFit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			_, err := newTestTrainer(t, tt.dataset, store, 0).Train(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, store.saves)
		})
	}
}

func TestTrainRejectsInvalidRatio(t *testing.T) {
	store := newFakeStore()
	for _, ratio := range []float64{-0.1, 1, 1.5} {
		_, err := newTestTrainer(t, staticDataset{records: scenarioRecords()}, store, ratio).Train(context.Background())
		assert.Error(t, err)
	}
	assert.Equal(t, 0, store.saves)
}

func TestTrainReportsSaveFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")

	_, err := newTestTrainer(t, staticDataset{records: scenarioRecords()}, store, 0).Train(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = store.Get(context.Background(), artifact.Ref{Name: "social_ads", Tag: artifact.LatestTag})
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}
