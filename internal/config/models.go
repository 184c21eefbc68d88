package config

import (
	"fmt"
	"time"

	"github.com/mikey/social-ads-predictor/internal/artifact"
	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/svm"
)

// StoreConfig represents the configuration of the artifact store
type StoreConfig struct {
	Type       string
	Path       string
	SQLitePath string
	MySQLDSN   string
	S3Bucket   string
	S3Region   string
	S3Prefix   string
}

// ServerConfig represents the configuration of the prediction endpoint
type ServerConfig struct {
	EndpointType    string
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	BackendName     string
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// GetStore returns the store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		Path:       c.GetString("store.path"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
		S3Bucket:   c.GetString("store.s3.bucket"),
		S3Region:   c.GetString("store.s3.region"),
		S3Prefix:   c.GetString("store.s3.prefix"),
	}
}

// GetArtifactRef returns the parsed reference of the artifact to serve.
// An empty artifact.ref serves the latest version of artifact.name.
func (c *Config) GetArtifactRef() (artifact.Ref, error) {
	s := c.GetString("artifact.ref")
	if s == "" {
		s = c.GetString("artifact.name")
	}
	ref, err := artifact.ParseRef(s)
	if err != nil {
		return artifact.Ref{}, fmt.Errorf("invalid artifact.ref: %w", err)
	}
	return ref, nil
}

// GetTraining returns the training configuration
func (c *Config) GetTraining() core.TrainingConfig {
	return core.TrainingConfig{
		ArtifactName: c.GetString("artifact.name"),
		TestRatio:    c.GetFloat64("training.test_ratio"),
		Seed:         c.GetInt64("training.seed"),
		SVM: svm.Params{
			C:             c.GetFloat64("training.svm.c"),
			Tolerance:     c.GetFloat64("training.svm.tolerance"),
			MaxIterations: c.GetInt("training.svm.max_iterations"),
			Seed:          c.GetInt64("training.seed"),
		},
	}
}

// GetServer returns the server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	read, err := c.GetDuration("server.read_timeout")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid server.read_timeout: %w", err)
	}
	write, err := c.GetDuration("server.write_timeout")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid server.write_timeout: %w", err)
	}
	shutdown, err := c.GetDuration("server.shutdown_timeout")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid server.shutdown_timeout: %w", err)
	}
	return ServerConfig{
		EndpointType:    c.GetString("server.endpoint_type"),
		ListenAddress:   c.GetString("server.listen_address"),
		ReadTimeout:     read,
		WriteTimeout:    write,
		ShutdownTimeout: shutdown,
		BackendName:     c.GetString("server.backend_name"),
	}, nil
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:      c.GetString("logging.level"),
		Format:     c.GetString("logging.format"),
		File:       c.GetString("logging.file"),
		MaxSizeMB:  c.GetInt("logging.max_size_mb"),
		MaxBackups: c.GetInt("logging.max_backups"),
		MaxAgeDays: c.GetInt("logging.max_age_days"),
	}
}
