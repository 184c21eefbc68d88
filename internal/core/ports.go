package core

import (
	"context"

	"github.com/mikey/social-ads-predictor/internal/artifact"
)

// ArtifactStore persists trained artifacts
type ArtifactStore interface {
	// Get loads and verifies the artifact a reference points at
	Get(ctx context.Context, ref artifact.Ref) (*artifact.Artifact, error)

	// Save stores an artifact and moves the latest tag to it. A failed save
	// leaves the previous state intact.
	Save(ctx context.Context, a *artifact.Artifact) (*artifact.Handle, error)

	// List returns the stored versions of an artifact, newest first
	List(ctx context.Context, name string) ([]artifact.Handle, error)
}

// DatasetSource provides labeled training records
type DatasetSource interface {
	// Load reads every record of the dataset
	Load(ctx context.Context) ([]TrainingRecord, error)
}
