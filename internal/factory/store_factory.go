package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/social-ads-predictor/internal/adapters/store"
	"github.com/mikey/social-ads-predictor/internal/config"
	"github.com/mikey/social-ads-predictor/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates artifact stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateArtifactStore creates an artifact store based on the configuration
func (f *StoreFactory) CreateArtifactStore(ctx context.Context) (core.ArtifactStore, error) {
	sc := f.cfg.GetStore()

	switch sc.Type {
	case "filesystem":
		return store.NewFilesystemStore(sc.Path, f.logger)
	case "memory":
		return store.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(ctx, sc.SQLitePath, f.logger)
	case "mysql":
		return store.NewMySQLStore(ctx, sc.MySQLDSN, f.logger)
	case "s3":
		return store.NewS3Store(ctx, sc.S3Bucket, sc.S3Region, sc.S3Prefix, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}
