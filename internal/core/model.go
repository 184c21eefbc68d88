package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/mikey/social-ads-predictor/internal/features"
)

// Label is the class predicted for a customer
type Label int

const (
	WillNotPurchase Label = 0
	WillPurchase    Label = 1
)

// String returns the human readable result
func (l Label) String() string {
	if l == WillPurchase {
		return "Will Purchase"
	}
	return "No Purchase"
}

// Verdict is the outcome of one prediction
type Verdict struct {
	Label    Label
	RawScore float64
	Backend  string
}

// TrainingRecord is one labeled row of the training data
type TrainingRecord struct {
	Record features.FeatureRecord
	Label  int
	// Line is the position of the row in its source, for error messages
	Line int
}

// Numeric is a request number that may arrive as a JSON number or a numeric string
type Numeric struct {
	text string
}

// NumericFromFloat wraps a float as a Numeric
func NumericFromFloat(v float64) *Numeric {
	return &Numeric{text: strconv.FormatFloat(v, 'g', -1, 64)}
}

// NumericFromString wraps a string as a Numeric without validating it
func NumericFromString(s string) *Numeric {
	return &Numeric{text: s}
}

// UnmarshalJSON keeps the raw value; validation happens in Float so the
// caller can report which field was wrong.
func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.text = s
		return nil
	}
	n.text = string(b)
	return nil
}

// MarshalJSON writes the value as a JSON number when it parses as one
func (n Numeric) MarshalJSON() ([]byte, error) {
	if v, err := n.Float(); err == nil {
		return json.Marshal(v)
	}
	return json.Marshal(n.text)
}

// Float parses the value. NaN and infinities are rejected.
func (n *Numeric) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(n.text), 64)
	if err != nil {
		return 0, errors.New("must be a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("must be a finite number")
	}
	return v, nil
}

func (n *Numeric) String() string {
	return n.text
}

// PredictionInput is the request payload of the predict boundary
type PredictionInput struct {
	Gender *string  `json:"Gender"`
	Age    *Numeric `json:"Age"`
	Salary *Numeric `json:"Salary"`
}

// PredictionResponse is returned for every successful prediction
type PredictionResponse struct {
	Prediction      int     `json:"prediction"`
	Result          string  `json:"result"`
	Backend         string  `json:"backend"`
	Score           float64 `json:"score"`
	ArtifactVersion string  `json:"artifact_version"`
}
