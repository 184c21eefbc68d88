package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	store := cfg.GetStore()
	assert.Equal(t, "filesystem", store.Type)
	assert.Equal(t, "./artifacts", store.Path)

	training := cfg.GetTraining()
	assert.Equal(t, "social_ads", training.ArtifactName)
	assert.Equal(t, 0.25, training.TestRatio)
	assert.Equal(t, 1.0, training.SVM.C)
	assert.Equal(t, 1000, training.SVM.MaxIterations)

	server, err := cfg.GetServer()
	require.NoError(t, err)
	assert.Equal(t, "http", server.EndpointType)
	assert.Equal(t, ":3000", server.ListenAddress)
	assert.Equal(t, 10*time.Second, server.ReadTimeout)
	assert.Equal(t, "Linear SVC graph session", server.BackendName)

	ref, err := cfg.GetArtifactRef()
	require.NoError(t, err)
	assert.Equal(t, artifact.Ref{Name: "social_ads", Tag: artifact.LatestTag}, ref)

	assert.Equal(t, "info", cfg.GetLogging().Level)
}

func TestArtifactRefFollowsName(t *testing.T) {
	v := NewEmptyViper()
	v.Set("artifact.name", "campaign_b")
	cfg := NewFromViper(v)

	ref, err := cfg.GetArtifactRef()
	require.NoError(t, err)
	assert.Equal(t, artifact.Ref{Name: "campaign_b", Tag: artifact.LatestTag}, ref)

	v.Set("artifact.ref", "campaign_a:0123456789abcdef")
	ref, err = cfg.GetArtifactRef()
	require.NoError(t, err)
	assert.Equal(t, artifact.Ref{Name: "campaign_a", Tag: "0123456789abcdef"}, ref)
}

func TestInvalidValues(t *testing.T) {
	v := NewEmptyViper()
	v.Set("server.read_timeout", "soon")
	v.Set("artifact.ref", "not a ref!")
	cfg := NewFromViper(v)

	_, err := cfg.GetServer()
	assert.Error(t, err)
	_, err = cfg.GetArtifactRef()
	assert.Error(t, err)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  type: sqlite
  sqlite_path: /var/lib/predictor/artifacts.db
training:
  test_ratio: 0.2
  seed: 7
`), 0o644))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.GetStore().Type)
	assert.Equal(t, "/var/lib/predictor/artifacts.db", cfg.GetStore().SQLitePath)
	assert.Equal(t, 0.2, cfg.GetTraining().TestRatio)
	assert.Equal(t, int64(7), cfg.GetTraining().Seed)
	assert.Equal(t, int64(7), cfg.GetTraining().SVM.Seed)

	// untouched keys keep their defaults
	assert.Equal(t, ":3000", cfg.GetString("server.listen_address"))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SOCIAL_ADS_STORE_TYPE", "memory")
	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.GetStore().Type)
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
