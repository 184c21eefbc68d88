package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCanonicalOrder(t *testing.T) {
	enc, err := NewEncoder(FeatureOrder(), nil)
	require.NoError(t, err)

	vec, err := enc.Encode(FeatureRecord{Gender: "Male", Age: 30, Salary: 87000})
	require.NoError(t, err)
	assert.Equal(t, EncodedVector{1, 30, 87000}, vec)

	vec, err = enc.Encode(FeatureRecord{Gender: "Female", Age: 45, Salary: 20000})
	require.NoError(t, err)
	assert.Equal(t, EncodedVector{0, 45, 20000}, vec)
}

func TestEncodeFollowsOrder(t *testing.T) {
	enc, err := NewEncoder([]string{EstimatedSalary, Gender, Age}, nil)
	require.NoError(t, err)

	vec, err := enc.Encode(FeatureRecord{Gender: "Male", Age: 30, Salary: 87000})
	require.NoError(t, err)
	assert.Equal(t, EncodedVector{87000, 1, 30}, vec)
}

func TestEncodeRejectsUnknownGender(t *testing.T) {
	enc, err := NewEncoder(FeatureOrder(), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = enc.Encode(FeatureRecord{Gender: "Other", Age: 30, Salary: 50000})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))

		var inputErr *InputError
		require.True(t, errors.As(err, &inputErr))
		assert.Equal(t, Gender, inputErr.Field)
	}
}

func TestEncodeRejectsNonFinite(t *testing.T) {
	enc, err := NewEncoder(FeatureOrder(), nil)
	require.NoError(t, err)

	_, err = enc.Encode(FeatureRecord{Gender: "Male", Age: math.NaN(), Salary: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = enc.Encode(FeatureRecord{Gender: "Male", Age: 1, Salary: math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, SalaryField, inputErr.Field)
}

func TestNewEncoderValidatesOrder(t *testing.T) {
	_, err := NewEncoder([]string{Gender, Age, "Height"}, nil)
	assert.ErrorIs(t, err, ErrUnknownFeature)

	_, err = NewEncoder([]string{Gender, Age, Age}, nil)
	assert.Error(t, err)

	_, err = NewEncoder([]string{Gender, Age}, nil)
	assert.Error(t, err)
}

func TestScalerMeanMapsToZero(t *testing.T) {
	rows := [][]float64{
		{1, 19, 19000},
		{0, 35, 20000},
		{0, 26, 43000},
		{1, 27, 57000},
		{1, 47, 150000},
	}
	params, err := FitScaler(rows, FeatureOrder())
	require.NoError(t, err)
	require.NoError(t, params.Validate())
	assert.Equal(t, 5, params.Samples)

	scaled, err := params.Transform(params.Mean)
	require.NoError(t, err)
	for _, v := range scaled {
		assert.InDelta(t, 0, v, 1e-12)
	}
}

func TestScalerUsesPopulationStd(t *testing.T) {
	rows := [][]float64{{0, 2, 10}, {1, 4, 10}}
	params, err := FitScaler(rows, FeatureOrder())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, params.Mean[0], 1e-12)
	assert.InDelta(t, 0.5, params.Std[0], 1e-12)
	assert.InDelta(t, 3, params.Mean[1], 1e-12)
	assert.InDelta(t, 1, params.Std[1], 1e-12)
	// constant column keeps a unit std
	assert.Equal(t, 1.0, params.Std[2])

	scaled, err := params.Transform([]float64{1, 4, 10})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 0}, scaled, 1e-12)
}

func TestScalerRejectsBadInput(t *testing.T) {
	_, err := FitScaler(nil, FeatureOrder())
	assert.Error(t, err)

	_, err = FitScaler([][]float64{{1, 2}}, FeatureOrder())
	assert.Error(t, err)

	params, err := FitScaler([][]float64{{1, 2, 3}}, FeatureOrder())
	require.NoError(t, err)
	_, err = params.Transform([]float64{1, 2})
	assert.Error(t, err)
}
