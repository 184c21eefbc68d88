package store

import (
	"context"
	"sync"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the ArtifactStore interface.
// Artifacts are kept encoded so reads go through the same verification as
// the persistent stores.
type MemoryStore struct {
	blobs  map[string]map[string][]byte
	latest map[string]string
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		blobs:  make(map[string]map[string][]byte),
		latest: make(map[string]string),
		logger: logger,
	}
}

// Get loads the artifact a reference points at
func (s *MemoryStore) Get(ctx context.Context, ref artifact.Ref) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version := ref.Tag
	if ref.IsLatest() {
		v, ok := s.latest[ref.Name]
		if !ok {
			return nil, artifact.ErrNotFound
		}
		version = v
	}

	b, ok := s.blobs[ref.Name][version]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return decode(b, ref)
}

// Save stores an artifact and moves the latest tag to it
func (s *MemoryStore) Save(ctx context.Context, a *artifact.Artifact) (*artifact.Handle, error) {
	b := artifact.Encode(a)

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.blobs[a.Name]
	if !ok {
		versions = make(map[string][]byte)
		s.blobs[a.Name] = versions
	}
	versions[a.Version] = b
	s.latest[a.Name] = a.Version

	s.logger.Debug("Stored artifact in memory",
		zap.String("name", a.Name),
		zap.String("version", a.Version))

	h := a.Handle(int64(len(b)))
	return &h, nil
}

// List returns the stored versions of an artifact, newest first
func (s *MemoryStore) List(ctx context.Context, name string) ([]artifact.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]artifact.Handle, 0, len(s.blobs[name]))
	for version, b := range s.blobs[name] {
		a, err := decode(b, artifact.Ref{Name: name, Tag: version})
		if err != nil {
			s.logger.Warn("Skipping unreadable artifact",
				zap.String("name", name),
				zap.String("version", version),
				zap.Error(err))
			continue
		}
		handles = append(handles, a.Handle(int64(len(b))))
	}
	sortHandles(handles)
	return handles, nil
}

// Stop releases the stored artifacts
func (s *MemoryStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = make(map[string]map[string][]byte)
	s.latest = make(map[string]string)
}
