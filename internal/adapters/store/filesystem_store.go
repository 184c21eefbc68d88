package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"go.uber.org/zap"
)

// FilesystemStore keeps artifacts under <root>/<name>/<version>.sapa with the
// latest version recorded in <root>/<name>/latest
type FilesystemStore struct {
	root   string
	logger *zap.Logger
}

// NewFilesystemStore creates a new filesystem store rooted at dir
func NewFilesystemStore(dir string, logger *zap.Logger) (*FilesystemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FilesystemStore{
		root:   dir,
		logger: logger,
	}, nil
}

// Get loads the artifact a reference points at
func (s *FilesystemStore) Get(ctx context.Context, ref artifact.Ref) (*artifact.Artifact, error) {
	if err := artifact.ValidateName(ref.Name); err != nil {
		return nil, err
	}
	version := ref.Tag
	if ref.IsLatest() {
		b, err := os.ReadFile(s.latestPath(ref.Name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, artifact.ErrNotFound
			}
			return nil, fmt.Errorf("failed to read latest tag: %w", err)
		}
		version = strings.TrimSpace(string(b))
		if err := artifact.ValidateName(version); err != nil {
			return nil, fmt.Errorf("%w: latest tag: %v", artifact.ErrCorrupt, err)
		}
	}

	b, err := os.ReadFile(s.versionPath(ref.Name, version))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return decode(b, ref)
}

// Save writes the artifact and then the latest tag, each through a temp file,
// fsync and rename. A reader sees the old or the new state, never a partial file.
func (s *FilesystemStore) Save(ctx context.Context, a *artifact.Artifact) (*artifact.Handle, error) {
	if err := artifact.ValidateName(a.Name); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, a.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	b := artifact.Encode(a)
	if err := writeAtomic(s.versionPath(a.Name, a.Version), b); err != nil {
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeAtomic(s.latestPath(a.Name), []byte(a.Version+"\n")); err != nil {
		return nil, fmt.Errorf("failed to update latest tag: %w", err)
	}

	s.logger.Debug("Wrote artifact",
		zap.String("path", s.versionPath(a.Name, a.Version)),
		zap.Int("size", len(b)))

	h := a.Handle(int64(len(b)))
	return &h, nil
}

// List returns the stored versions of an artifact, newest first.
// Unreadable files are skipped with a warning.
func (s *FilesystemStore) List(ctx context.Context, name string) ([]artifact.Handle, error) {
	if err := artifact.ValidateName(name); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	var handles []artifact.Handle
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		version := strings.TrimSuffix(e.Name(), fileExt)
		b, err := os.ReadFile(filepath.Join(s.root, name, e.Name()))
		if err == nil {
			var a *artifact.Artifact
			if a, err = decode(b, artifact.Ref{Name: name, Tag: version}); err == nil {
				handles = append(handles, a.Handle(int64(len(b))))
				continue
			}
		}
		s.logger.Warn("Skipping unreadable artifact",
			zap.String("file", e.Name()),
			zap.Error(err))
	}
	sortHandles(handles)
	return handles, nil
}

// Stop is a no-op; every operation opens and closes its own files
func (s *FilesystemStore) Stop() {}

func (s *FilesystemStore) versionPath(name, version string) string {
	return filepath.Join(s.root, name, version+fileExt)
}

func (s *FilesystemStore) latestPath(name string) string {
	return filepath.Join(s.root, name, artifact.LatestTag)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
