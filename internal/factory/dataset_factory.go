package factory

import (
	"github.com/mikey/social-ads-predictor/internal/adapters/dataset"
	"github.com/mikey/social-ads-predictor/internal/config"
	"github.com/mikey/social-ads-predictor/internal/core"
	"go.uber.org/zap"
)

// DatasetFactory creates training data sources
type DatasetFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDatasetFactory creates a new dataset factory
func NewDatasetFactory(cfg *config.Config, logger *zap.Logger) *DatasetFactory {
	return &DatasetFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateDatasetSource creates the CSV source at training.dataset_path
func (f *DatasetFactory) CreateDatasetSource() core.DatasetSource {
	return dataset.NewCSVSource(f.cfg.GetString("training.dataset_path"), f.logger)
}
