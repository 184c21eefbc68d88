// Package artifact defines the bundle the trainer hands to the predictor:
// classifier graph, scaler parameters and feature order in one envelope.
package artifact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/zeebo/xxh3"
)

// FormatVersion is the envelope format written by this package
const FormatVersion uint32 = 1

// LatestTag names the most recently saved version of an artifact
const LatestTag = "latest"

var (
	// ErrNotFound is returned when no artifact matches a reference
	ErrNotFound = errors.New("artifact not found")
	// ErrCorrupt is returned when stored bytes are not a valid artifact
	ErrCorrupt = errors.New("artifact corrupt")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Metrics summarizes the held-out evaluation of a training run
type Metrics struct {
	TrainSamples int
	TestSamples  int
	Accuracy     float64
	Precision    float64
	Recall       float64
}

// Artifact is the unit of transfer between trainer and predictor
type Artifact struct {
	Name          string
	Version       string
	FormatVersion uint32
	FeatureOrder  []string
	Scaler        features.ScalerParams
	Graph         []byte
	Metrics       Metrics
	CreatedAt     time.Time
}

// Handle identifies a stored artifact
type Handle struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// String returns the handle as a reference
func (h Handle) String() string {
	return h.Name + ":" + h.Version
}

// New bundles trained parts into an artifact whose version is its content digest
func New(name string, graph []byte, scaler features.ScalerParams, order []string, metrics Metrics, now time.Time) (*Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(graph) == 0 {
		return nil, errors.New("artifact graph is empty")
	}
	if err := scaler.Validate(); err != nil {
		return nil, err
	}
	if !features.SameOrder(scaler.Features, order) {
		return nil, fmt.Errorf("scaler features %v do not match feature order %v", scaler.Features, order)
	}

	a := &Artifact{
		Name:          name,
		FormatVersion: FormatVersion,
		FeatureOrder:  append([]string(nil), order...),
		Scaler:        scaler,
		Graph:         append([]byte(nil), graph...),
		Metrics:       metrics,
		CreatedAt:     now.UTC().Truncate(time.Millisecond),
	}
	a.Version = Digest(a)
	return a, nil
}

// Handle returns the handle of an artifact of the given encoded size
func (a *Artifact) Handle(size int64) Handle {
	return Handle{
		Name:      a.Name,
		Version:   a.Version,
		Size:      size,
		CreatedAt: a.CreatedAt,
	}
}

// Digest is the content version of an artifact: the first 16 hex characters of
// the 128-bit xxh3 hash of its graph, scaler parameters and feature order.
func Digest(a *Artifact) string {
	h := xxh3.New()
	h.Write(a.Graph)
	var buf [8]byte
	writeFloat := func(v float64) {
		bits := math.Float64bits(v)
		for i := range buf {
			buf[i] = byte(bits >> (8 * i))
		}
		h.Write(buf[:])
	}
	for i := range a.Scaler.Mean {
		writeFloat(a.Scaler.Mean[i])
		writeFloat(a.Scaler.Std[i])
	}
	h.WriteString(strings.Join(a.FeatureOrder, "\x00"))

	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:8])
}

// ValidateName checks that a name is usable as a path segment and a key
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// Ref is a parsed "name[:tag]" reference
type Ref struct {
	Name string
	Tag  string
}

// ParseRef parses "name", "name:latest" or "name:<version>"
func ParseRef(s string) (Ref, error) {
	name, tag, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found || tag == "" {
		tag = LatestTag
	}
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}
	if err := ValidateName(tag); err != nil {
		return Ref{}, fmt.Errorf("invalid artifact tag in %q", s)
	}
	return Ref{Name: name, Tag: tag}, nil
}

// IsLatest reports whether the reference points at the latest version
func (r Ref) IsLatest() bool {
	return r.Tag == LatestTag
}

func (r Ref) String() string {
	return r.Name + ":" + r.Tag
}
