// Package dataset reads labeled training data.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/features"
	"go.uber.org/zap"
)

// LabelColumn is the header of the target column
const LabelColumn = "Purchased"

// CSVSource reads training records from a CSV file with a header row.
// Columns other than the features and the label are ignored.
type CSVSource struct {
	path   string
	logger *zap.Logger
}

// NewCSVSource creates a new CSV dataset source
func NewCSVSource(path string, logger *zap.Logger) *CSVSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSource{
		path:   path,
		logger: logger,
	}
}

// Load reads every record of the file
func (s *CSVSource) Load(ctx context.Context) ([]core.TrainingRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDataLoad, err)
	}
	defer f.Close()

	records, err := Read(ctx, f)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loaded training data",
		zap.String("path", s.path),
		zap.Int("rows", len(records)))
	return records, nil
}

// Read parses CSV training data from r
func Read(ctx context.Context, r io.Reader) ([]core.TrainingRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", core.ErrDataLoad)
		}
		return nil, fmt.Errorf("%w: failed to read header: %w", core.ErrDataLoad, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	required := []string{features.Gender, features.Age, features.EstimatedSalary, LabelColumn}
	idx := make([]int, len(required))
	for i, name := range required {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", core.ErrDataLoad, name)
		}
		idx[i] = col
	}

	var records []core.TrainingRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrDataLoad, err)
		}

		// quoted fields may span lines, so positions come from the reader
		line := func(field int) int {
			l, _ := reader.FieldPos(field)
			return l
		}

		age, err := parseNumber(row[idx[1]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %w", core.ErrDataLoad, line(idx[1]), features.Age, err)
		}
		salary, err := parseNumber(row[idx[2]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %w", core.ErrDataLoad, line(idx[2]), features.EstimatedSalary, err)
		}
		label, err := parseLabel(row[idx[3]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s: %w", core.ErrDataLoad, line(idx[3]), LabelColumn, err)
		}

		records = append(records, core.TrainingRecord{
			Record: features.FeatureRecord{
				Gender: strings.TrimSpace(row[idx[0]]),
				Age:    age,
				Salary: salary,
			},
			Label: label,
			Line:  line(0),
		})
	}
	return records, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func parseLabel(s string) (int, error) {
	switch strings.TrimSpace(s) {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, fmt.Errorf("label %q is not 0 or 1", s)
}
