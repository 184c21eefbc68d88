package store

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS artifacts (
			name VARCHAR(255) NOT NULL,
			version VARCHAR(64) NOT NULL,
			size BIGINT NOT NULL,
			created_at_ms BIGINT NOT NULL,
			body LONGBLOB NOT NULL,
			PRIMARY KEY (name, version),
			INDEX idx_created_at (name, created_at_ms)
		)
	`, `
		CREATE TABLE IF NOT EXISTS artifact_tags (
			name VARCHAR(255) NOT NULL,
			tag VARCHAR(64) NOT NULL,
			version VARCHAR(64) NOT NULL,
			PRIMARY KEY (name, tag)
		)
	`},
	upsertBlob: `
		INSERT INTO artifacts (name, version, size, created_at_ms, body)
		VALUES (:name, :version, :size, :created_at_ms, :body)
		ON DUPLICATE KEY UPDATE
			size = VALUES(size),
			created_at_ms = VALUES(created_at_ms),
			body = VALUES(body)
	`,
	upsertLatest: `
		INSERT INTO artifact_tags (name, tag, version)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			version = VALUES(version)
	`,
}

// NewMySQLStore connects to MySQL and creates the artifact tables if needed
func NewMySQLStore(ctx context.Context, dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}
	return newSQLStore(ctx, db, mysqlDialect, logger)
}
