package features

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ScalerParams holds per-feature standardization statistics.
// They are fitted once on training data and never refit at serving time.
type ScalerParams struct {
	Features []string
	Mean     []float64
	Std      []float64
	Samples  int
}

// FitScaler computes the mean and population standard deviation of every column.
// A column with zero spread gets a std of 1 so it maps to 0 instead of dividing by zero.
func FitScaler(rows [][]float64, names []string) (ScalerParams, error) {
	if len(rows) == 0 {
		return ScalerParams{}, errors.New("cannot fit scaler on empty data")
	}
	width := len(names)
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return ScalerParams{}, fmt.Errorf("row %d has %d values, want %d", i, len(row), width)
		}
		data = append(data, row...)
	}
	m := mat.NewDense(len(rows), width, data)

	params := ScalerParams{
		Features: append([]string(nil), names...),
		Mean:     make([]float64, width),
		Std:      make([]float64, width),
		Samples:  len(rows),
	}
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		mat.Col(col, j, m)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		params.Mean[j] = mean
		params.Std[j] = std
	}
	return params, nil
}

// Width returns the number of features the parameters cover
func (p ScalerParams) Width() int {
	return len(p.Mean)
}

// Validate checks that the parameters are internally consistent
func (p ScalerParams) Validate() error {
	if len(p.Mean) == 0 {
		return errors.New("scaler has no features")
	}
	if len(p.Std) != len(p.Mean) || len(p.Features) != len(p.Mean) {
		return fmt.Errorf("scaler has %d names, %d means and %d stds", len(p.Features), len(p.Mean), len(p.Std))
	}
	for i, s := range p.Std {
		if s == 0 || !isFinite(s) || !isFinite(p.Mean[i]) {
			return fmt.Errorf("scaler feature %q has invalid statistics", p.Features[i])
		}
	}
	return nil
}

// Transform standardizes one vector: (x - mean) / std
func (p ScalerParams) Transform(vec []float64) ([]float64, error) {
	if len(vec) != p.Width() {
		return nil, fmt.Errorf("vector has %d values, scaler expects %d", len(vec), p.Width())
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = (v - p.Mean[i]) / p.Std[i]
	}
	return out, nil
}

// TransformAll standardizes every row
func (p ScalerParams) TransformAll(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := p.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}
