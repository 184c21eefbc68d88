package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TextProcessor provides utilities for processing categorical text input
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// NormalizeCategory returns the comparison key for a categorical literal.
// Surrounding whitespace is removed, the value is NFC normalized and case folded,
// so "Male", " male" and "MALE" share a key.
func (tp *TextProcessor) NormalizeCategory(value string) string {
	cleaned := strings.TrimSpace(tp.SanitizeUTF8(value))
	if cleaned == "" {
		return ""
	}
	// cases.Caser keeps state between calls and is not safe for concurrent use
	folder := cases.Fold()
	return folder.String(norm.NFC.String(cleaned))
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				// Skip invalid UTF-8 sequences
				continue
			}
		}
		result = append(result, r)
	}

	tp.logger.Debug("Removed invalid UTF-8 sequences from input",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(string(result))))

	return string(result)
}
