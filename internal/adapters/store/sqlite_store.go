package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS artifacts (
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL,
			body BLOB NOT NULL,
			PRIMARY KEY (name, version)
		)
	`, `
		CREATE TABLE IF NOT EXISTS artifact_tags (
			name TEXT NOT NULL,
			tag TEXT NOT NULL,
			version TEXT NOT NULL,
			PRIMARY KEY (name, tag)
		)
	`},
	upsertBlob: `
		INSERT OR REPLACE INTO artifacts (name, version, size, created_at_ms, body)
		VALUES (:name, :version, :size, :created_at_ms, :body)
	`,
	upsertLatest: `
		INSERT OR REPLACE INTO artifact_tags (name, tag, version)
		VALUES (?, ?, ?)
	`,
}

// NewSQLiteStore opens (and creates if needed) a SQLite artifact store
func NewSQLiteStore(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect, logger)
}
