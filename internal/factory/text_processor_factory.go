package factory

import (
	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/utils"
	"github.com/mikey/social-ads-predictor/internal/vocabulary"
	"go.uber.org/zap"
)

// TextProcessorFactory creates text processors and the vocabularies built on them
type TextProcessorFactory struct {
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateGenderVocabulary creates the Gender vocabulary on a fresh text processor
func (f *TextProcessorFactory) CreateGenderVocabulary() *vocabulary.Vocabulary {
	return vocabulary.NewGender(f.CreateTextProcessor(), f.logger)
}

// CreateEncoder creates an encoder in the canonical feature order
func (f *TextProcessorFactory) CreateEncoder() (*features.Encoder, error) {
	return features.NewEncoder(features.FeatureOrder(), f.CreateGenderVocabulary())
}
