// Package features turns raw customer observations into the numeric vectors
// the classifier was trained on. Trainer and predictor share this code so the
// encoding and the feature order cannot drift apart.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/mikey/social-ads-predictor/internal/vocabulary"
)

// Feature names, as they appear in the training data header
const (
	Gender          = "Gender"
	Age             = "Age"
	EstimatedSalary = "EstimatedSalary"
)

// SalaryField is the request field that carries EstimatedSalary
const SalaryField = "Salary"

// ErrInvalidInput is returned when a record cannot be encoded
var ErrInvalidInput = errors.New("invalid input")

// ErrUnknownFeature is returned when a feature order names a feature this
// package cannot produce
var ErrUnknownFeature = errors.New("unknown feature")

// InputError describes which field of a record was rejected
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// FeatureRecord is one customer observation
type FeatureRecord struct {
	Gender string
	Age    float64
	Salary float64
}

// EncodedVector is a record encoded in a fixed feature order
type EncodedVector []float64

// FeatureOrder returns the canonical feature order
func FeatureOrder() []string {
	return []string{Gender, Age, EstimatedSalary}
}

// SameOrder reports whether two feature orders are identical
func SameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Encoder encodes records in a given feature order
type Encoder struct {
	order  []string
	gender *vocabulary.Vocabulary
}

// NewEncoder creates an encoder for the given order.
// Every feature must be known and appear exactly once.
func NewEncoder(order []string, gender *vocabulary.Vocabulary) (*Encoder, error) {
	if gender == nil {
		gender = vocabulary.NewGender(nil, nil)
	}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		switch name {
		case Gender, Age, EstimatedSalary:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate feature %q in order", name)
		}
		seen[name] = true
	}
	if len(order) != len(FeatureOrder()) {
		return nil, fmt.Errorf("feature order has %d features, want %d", len(order), len(FeatureOrder()))
	}

	return &Encoder{
		order:  append([]string(nil), order...),
		gender: gender,
	}, nil
}

// Order returns a copy of the encoder's feature order
func (e *Encoder) Order() []string {
	return append([]string(nil), e.order...)
}

// Encode converts a record to a vector in the encoder's order
func (e *Encoder) Encode(record FeatureRecord) (EncodedVector, error) {
	vec := make(EncodedVector, len(e.order))
	for i, name := range e.order {
		switch name {
		case Gender:
			code, ok := e.gender.Lookup(record.Gender)
			if !ok {
				return nil, &InputError{
					Field:  Gender,
					Reason: fmt.Sprintf("%q is not one of %v", record.Gender, e.gender.Literals()),
				}
			}
			vec[i] = code
		case Age:
			if !isFinite(record.Age) {
				return nil, &InputError{Field: Age, Reason: "must be a finite number"}
			}
			vec[i] = record.Age
		case EstimatedSalary:
			if !isFinite(record.Salary) {
				return nil, &InputError{Field: SalaryField, Reason: "must be a finite number"}
			}
			vec[i] = record.Salary
		}
	}
	return vec, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
