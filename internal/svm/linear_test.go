package svm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separable() ([][]float64, []int) {
	x := [][]float64{
		{-2, -1},
		{-1.5, -2},
		{-1, -1.2},
		{-2.2, -0.5},
		{1, 1.5},
		{2, 1},
		{1.5, 2},
		{0.8, 1.1},
	}
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}
	return x, y
}

func TestFitSeparable(t *testing.T) {
	x, y := separable()
	model, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)
	assert.Len(t, model.Weights, 2)

	for i, row := range x {
		label, _, err := model.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, y[i], label, "row %d", i)
	}

	label, score, err := model.Predict([]float64{3, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
	assert.Greater(t, score, 0.0)

	label, score, err = model.Predict([]float64{-3, -3})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.Less(t, score, 0.0)
}

func TestFitIsDeterministic(t *testing.T) {
	x, y := separable()
	params := DefaultParams()
	params.Seed = 42

	first, err := Fit(x, y, params)
	require.NoError(t, err)
	second, err := Fit(x, y, params)
	require.NoError(t, err)

	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, first.Bias, second.Bias)
}

func TestFitRejectsDegenerateData(t *testing.T) {
	_, err := Fit(nil, nil, DefaultParams())
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Fit([][]float64{{1}, {2}}, []int{1, 1}, DefaultParams())
	assert.ErrorIs(t, err, ErrSingleClass)

	_, err = Fit([][]float64{{1}, {2}}, []int{0, 2}, DefaultParams())
	assert.Error(t, err)

	_, err = Fit([][]float64{{1}, {2, 3}}, []int{0, 1}, DefaultParams())
	assert.Error(t, err)

	params := DefaultParams()
	params.C = 0
	_, err = Fit([][]float64{{1}, {2}}, []int{0, 1}, params)
	assert.Error(t, err)
}

func TestDecisionWidthMismatch(t *testing.T) {
	model := &LinearSVC{Weights: []float64{1, 2}}
	_, err := model.Decision([]float64{1})
	assert.Error(t, err)
}
