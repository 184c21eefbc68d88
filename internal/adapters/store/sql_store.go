package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mikey/social-ads-predictor/internal/artifact"
	"go.uber.org/zap"
)

// dialect holds the statements that differ between SQL engines
type dialect struct {
	name         string
	schema       []string
	upsertBlob   string
	upsertLatest string
}

// SQLStore keeps artifacts in two tables: artifacts holds the encoded bytes of
// every version, artifact_tags maps (name, tag) to a version. Save writes both
// in one transaction.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
}

type artifactRow struct {
	Name        string `db:"name"`
	Version     string `db:"version"`
	Size        int64  `db:"size"`
	CreatedAtMs int64  `db:"created_at_ms"`
	Body        []byte `db:"body"`
}

func newSQLStore(ctx context.Context, db *sqlx.DB, d dialect, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}
	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
	}, nil
}

// Get loads the artifact a reference points at
func (s *SQLStore) Get(ctx context.Context, ref artifact.Ref) (*artifact.Artifact, error) {
	version := ref.Tag
	if ref.IsLatest() {
		err := s.db.GetContext(ctx, &version, `
			SELECT version FROM artifact_tags
			WHERE name = ? AND tag = ?
		`, ref.Name, artifact.LatestTag)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, artifact.ErrNotFound
			}
			return nil, fmt.Errorf("failed to query latest tag: %w", err)
		}
	}

	var body []byte
	err := s.db.GetContext(ctx, &body, `
		SELECT body FROM artifacts
		WHERE name = ? AND version = ?
	`, ref.Name, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}
	return decode(body, ref)
}

// Save stores the artifact row and moves the latest tag in one transaction
func (s *SQLStore) Save(ctx context.Context, a *artifact.Artifact) (*artifact.Handle, error) {
	b := artifact.Encode(a)
	row := artifactRow{
		Name:        a.Name,
		Version:     a.Version,
		Size:        int64(len(b)),
		CreatedAtMs: a.CreatedAt.UnixMilli(),
		Body:        b,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, s.dialect.upsertBlob, row); err != nil {
		return nil, fmt.Errorf("failed to insert artifact: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.upsertLatest, a.Name, artifact.LatestTag, a.Version); err != nil {
		return nil, fmt.Errorf("failed to update latest tag: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit artifact: %w", err)
	}

	s.logger.Debug("Stored artifact",
		zap.String("engine", s.dialect.name),
		zap.String("name", a.Name),
		zap.String("version", a.Version))

	h := a.Handle(row.Size)
	return &h, nil
}

// List returns the stored versions of an artifact, newest first
func (s *SQLStore) List(ctx context.Context, name string) ([]artifact.Handle, error) {
	var rows []artifactRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT name, version, size, created_at_ms FROM artifacts
		WHERE name = ?
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	handles := make([]artifact.Handle, 0, len(rows))
	for _, r := range rows {
		handles = append(handles, artifact.Handle{
			Name:      r.Name,
			Version:   r.Version,
			Size:      r.Size,
			CreatedAt: time.UnixMilli(r.CreatedAtMs).UTC(),
		})
	}
	sortHandles(handles)
	return handles, nil
}

// Stop closes the database connection
func (s *SQLStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.String("engine", s.dialect.name), zap.Error(err))
	}
}
