package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type artifactStore interface {
	Get(ctx context.Context, ref artifact.Ref) (*artifact.Artifact, error)
	Save(ctx context.Context, a *artifact.Artifact) (*artifact.Handle, error)
	List(ctx context.Context, name string) ([]artifact.Handle, error)
	Stop()
}

func testArtifact(t *testing.T, bias float64, createdAt time.Time) *artifact.Artifact {
	t.Helper()
	scaler := features.ScalerParams{
		Features: features.FeatureOrder(),
		Mean:     []float64{0.5, 38, 70000},
		Std:      []float64{0.5, 10, 34000},
		Samples:  300,
	}
	g := graph.Marshal(graph.ExportLinear([]float64{0.1, 2, 1.1}, bias, "test"))
	a, err := artifact.New("social_ads", g, scaler, features.FeatureOrder(), artifact.Metrics{TrainSamples: 300}, createdAt)
	require.NoError(t, err)
	return a
}

func latest(name string) artifact.Ref {
	return artifact.Ref{Name: name, Tag: artifact.LatestTag}
}

// runStoreContract checks the behavior every store must share
func runStoreContract(t *testing.T, s artifactStore) {
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, latest("social_ads"))
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	handles, err := s.List(ctx, "social_ads")
	require.NoError(t, err)
	assert.Empty(t, handles)

	first := testArtifact(t, -1, t0)
	h1, err := s.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.Version, h1.Version)
	assert.Greater(t, h1.Size, int64(0))

	got, err := s.Get(ctx, latest("social_ads"))
	require.NoError(t, err)
	assert.Equal(t, first.Version, got.Version)
	assert.Equal(t, first.Scaler, got.Scaler)
	assert.Equal(t, first.Graph, got.Graph)

	second := testArtifact(t, 0.5, t0.Add(time.Hour))
	h2, err := s.Save(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, h1.Version, h2.Version)

	got, err = s.Get(ctx, latest("social_ads"))
	require.NoError(t, err)
	assert.Equal(t, second.Version, got.Version)

	got, err = s.Get(ctx, artifact.Ref{Name: "social_ads", Tag: first.Version})
	require.NoError(t, err)
	assert.Equal(t, first.Version, got.Version)

	_, err = s.Get(ctx, artifact.Ref{Name: "social_ads", Tag: "ffffffffffffffff"})
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	_, err = s.Get(ctx, latest("other"))
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	handles, err = s.List(ctx, "social_ads")
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, second.Version, handles[0].Version)
	assert.Equal(t, first.Version, handles[1].Version)
	assert.True(t, handles[1].CreatedAt.Equal(t0))

	// saving an identical artifact again is idempotent
	_, err = s.Save(ctx, testArtifact(t, -1, t0))
	require.NoError(t, err)
	handles, err = s.List(ctx, "social_ads")
	require.NoError(t, err)
	assert.Len(t, handles, 2)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(nil)
	defer s.Stop()
	runStoreContract(t, s)
}

func TestFilesystemStore(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Stop()
	runStoreContract(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "artifacts.db"), nil)
	require.NoError(t, err)
	defer s.Stop()
	runStoreContract(t, s)
}

func TestS3Store(t *testing.T) {
	s := NewS3StoreWithClient(newFakeS3(), "models", "predictor", nil)
	defer s.Stop()
	runStoreContract(t, s)
}

func TestFilesystemStoreDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir, nil)
	require.NoError(t, err)

	a := testArtifact(t, -1, time.Now())
	_, err = s.Save(context.Background(), a)
	require.NoError(t, err)

	path := filepath.Join(dir, "social_ads", a.Version+fileExt)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[len(b)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = s.Get(context.Background(), latest("social_ads"))
	assert.ErrorIs(t, err, artifact.ErrCorrupt)

	handles, err := s.List(context.Background(), "social_ads")
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestFilesystemStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir, nil)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), testArtifact(t, -1, time.Now()))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "social_ads"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), e.Name())
	}
	assert.Len(t, entries, 2)
}

func TestStoreRejectsMismatchedContent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir, nil)
	require.NoError(t, err)

	a := testArtifact(t, -1, time.Now())
	_, err = s.Save(context.Background(), a)
	require.NoError(t, err)

	// a valid envelope stored under the wrong version
	other := testArtifact(t, 2, time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "social_ads", a.Version+fileExt), artifact.Encode(other), 0o644))

	_, err = s.Get(context.Background(), artifact.Ref{Name: "social_ads", Tag: a.Version})
	assert.ErrorIs(t, err, artifact.ErrCorrupt)
}

func TestMemoryStoreListSkipsUnreadable(t *testing.T) {
	s := NewMemoryStore(nil)
	a := testArtifact(t, -1, time.Now())
	_, err := s.Save(context.Background(), a)
	require.NoError(t, err)

	s.blobs["social_ads"]["0123456789abcdef"] = []byte("not an artifact")

	handles, err := s.List(context.Background(), "social_ads")
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, a.Version, handles[0].Version)
}

func TestS3StoreListSkipsUnreadable(t *testing.T) {
	client := newFakeS3()
	s := NewS3StoreWithClient(client, "models", "predictor", nil)

	a := testArtifact(t, -1, time.Now())
	_, err := s.Save(context.Background(), a)
	require.NoError(t, err)

	corrupt := "models/predictor/social_ads/0123456789abcdef" + fileExt
	broken := "models/predictor/social_ads/fedcba9876543210" + fileExt
	client.objects[corrupt] = []byte("not an artifact")
	client.objects[broken] = artifact.Encode(a)
	client.failing = map[string]error{broken: errors.New("access denied")}

	handles, err := s.List(context.Background(), "social_ads")
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, a.Version, handles[0].Version)
}

// fakeS3 is an in-memory bucket
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failing map[string]error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; ok {
		return nil, err
	}
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, aws.ToString(in.Bucket)+"/"))
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}
