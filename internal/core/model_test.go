package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelString(t *testing.T) {
	assert.Equal(t, "Will Purchase", WillPurchase.String())
	assert.Equal(t, "No Purchase", WillNotPurchase.String())
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: `30`, want: 30},
		{raw: `87000.5`, want: 87000.5},
		{raw: `"42"`, want: 42},
		{raw: `" 1e5 "`, want: 100000},
		{raw: `"abc"`, wantErr: true},
		{raw: `""`, wantErr: true},
		{raw: `"Inf"`, wantErr: true},
		{raw: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var n Numeric
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &n))
			v, err := n.Float()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestPredictionInputMarshal(t *testing.T) {
	gender := "Male"
	b, err := json.Marshal(PredictionInput{
		Gender: &gender,
		Age:    NumericFromFloat(30),
		Salary: NumericFromString("87000"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Gender":"Male","Age":30,"Salary":87000}`, string(b))
}
