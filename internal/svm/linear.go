// Package svm fits linear support vector classifiers.
package svm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrSingleClass is returned when the training labels contain one class only
	ErrSingleClass = errors.New("training data contains a single class")
	// ErrNoData is returned when there is nothing to train on
	ErrNoData = errors.New("training data is empty")
)

// Params are the hyperparameters of the solver
type Params struct {
	// C is the penalty of the hinge loss
	C float64
	// Tolerance stops the solver once the projected gradient spread falls below it
	Tolerance float64
	// MaxIterations bounds the number of passes over the data
	MaxIterations int
	// Seed drives the order in which samples are visited
	Seed int64
}

// DefaultParams returns the solver defaults
func DefaultParams() Params {
	return Params{
		C:             1.0,
		Tolerance:     1e-3,
		MaxIterations: 1000,
		Seed:          0,
	}
}

// LinearSVC is a fitted binary linear classifier: label 1 when w.x + b > 0
type LinearSVC struct {
	Weights    []float64
	Bias       float64
	Iterations int
	Converged  bool
}

// Fit trains a linear SVM with the dual coordinate descent method on the hinge loss.
// Labels must be 0 or 1. The bias is learned as the weight of a constant feature.
func Fit(x [][]float64, labels []int, params Params) (*LinearSVC, error) {
	if len(x) == 0 || len(labels) == 0 {
		return nil, ErrNoData
	}
	if len(x) != len(labels) {
		return nil, fmt.Errorf("features and labels size mismatch: %d != %d", len(x), len(labels))
	}
	if params.C <= 0 {
		return nil, fmt.Errorf("C must be positive, got %v", params.C)
	}
	if params.Tolerance <= 0 {
		params.Tolerance = DefaultParams().Tolerance
	}
	if params.MaxIterations <= 0 {
		params.MaxIterations = DefaultParams().MaxIterations
	}

	width := len(x[0])
	n := len(x)
	y := make([]float64, n)
	augmented := make([][]float64, n)
	var positives int
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), width)
		}
		switch labels[i] {
		case 1:
			y[i] = 1
			positives++
		case 0:
			y[i] = -1
		default:
			return nil, fmt.Errorf("row %d has label %d, want 0 or 1", i, labels[i])
		}
		augmented[i] = append(append(make([]float64, 0, width+1), row...), 1)
	}
	if positives == 0 || positives == n {
		return nil, ErrSingleClass
	}

	w := make([]float64, width+1)
	alpha := make([]float64, n)
	qd := make([]float64, n)
	for i, row := range augmented {
		qd[i] = floats.Dot(row, row)
	}

	rng := rand.New(rand.NewSource(params.Seed))
	model := &LinearSVC{}
	for iter := 0; iter < params.MaxIterations; iter++ {
		maxPG := math.Inf(-1)
		minPG := math.Inf(1)

		for _, i := range rng.Perm(n) {
			g := y[i]*floats.Dot(w, augmented[i]) - 1

			pg := g
			switch {
			case alpha[i] == 0:
				pg = math.Min(g, 0)
			case alpha[i] == params.C:
				pg = math.Max(g, 0)
			}
			maxPG = math.Max(maxPG, pg)
			minPG = math.Min(minPG, pg)

			if pg != 0 {
				old := alpha[i]
				alpha[i] = math.Min(math.Max(alpha[i]-g/qd[i], 0), params.C)
				floats.AddScaled(w, (alpha[i]-old)*y[i], augmented[i])
			}
		}

		model.Iterations = iter + 1
		if maxPG-minPG < params.Tolerance {
			model.Converged = true
			break
		}
	}

	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("solver produced non-finite weights")
		}
	}

	model.Weights = w[:width]
	model.Bias = w[width]
	return model, nil
}

// Decision returns the signed distance score w.x + b
func (m *LinearSVC) Decision(x []float64) (float64, error) {
	if len(x) != len(m.Weights) {
		return 0, fmt.Errorf("vector has %d values, model expects %d", len(x), len(m.Weights))
	}
	return floats.Dot(m.Weights, x) + m.Bias, nil
}

// Predict returns the class label (0 or 1) and the decision score
func (m *LinearSVC) Predict(x []float64) (int, float64, error) {
	score, err := m.Decision(x)
	if err != nil {
		return 0, 0, err
	}
	if score > 0 {
		return 1, score, nil
	}
	return 0, score, nil
}
