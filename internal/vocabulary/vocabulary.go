package vocabulary

import (
	"sort"

	"github.com/mikey/social-ads-predictor/internal/utils"
	"go.uber.org/zap"
)

// Vocabulary maps the literals of one categorical feature to numeric codes
type Vocabulary struct {
	feature   string
	codes     map[string]float64
	literals  []string
	processor *utils.TextProcessor
	logger    *zap.Logger
}

// New creates a vocabulary for a categorical feature.
// Literals are compared through the text processor's normalization.
func New(feature string, codes map[string]float64, processor *utils.TextProcessor, logger *zap.Logger) *Vocabulary {
	if logger == nil {
		logger = zap.NewNop()
	}
	if processor == nil {
		processor = utils.NewTextProcessor(logger)
	}

	normalized := make(map[string]float64, len(codes))
	literals := make([]string, 0, len(codes))
	for literal, code := range codes {
		normalized[processor.NormalizeCategory(literal)] = code
		literals = append(literals, literal)
	}
	sort.Strings(literals)

	return &Vocabulary{
		feature:   feature,
		codes:     normalized,
		literals:  literals,
		processor: processor,
		logger:    logger,
	}
}

// NewGender returns the vocabulary used for the Gender feature: Male=1, Female=0
func NewGender(processor *utils.TextProcessor, logger *zap.Logger) *Vocabulary {
	return New("Gender", map[string]float64{
		"Male":   1,
		"Female": 0,
	}, processor, logger)
}

// Lookup returns the code of a literal and whether it is part of the vocabulary
func (v *Vocabulary) Lookup(literal string) (float64, bool) {
	key := v.processor.NormalizeCategory(literal)
	if key == "" {
		return 0, false
	}

	code, ok := v.codes[key]
	if !ok {
		v.logger.Debug("Literal is not part of vocabulary",
			zap.String("feature", v.feature),
			zap.String("literal", literal))
	}
	return code, ok
}

// Feature returns the name of the feature this vocabulary encodes
func (v *Vocabulary) Feature() string {
	return v.feature
}

// Literals returns the accepted literals in sorted order
func (v *Vocabulary) Literals() []string {
	return append([]string(nil), v.literals...)
}
