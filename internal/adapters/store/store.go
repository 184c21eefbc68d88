// Package store implements the artifact stores the trainer publishes to and
// the predictor loads from.
package store

import (
	"fmt"
	"sort"

	"github.com/mikey/social-ads-predictor/internal/artifact"
)

// fileExt is the extension of encoded artifacts in file and object stores
const fileExt = ".sapa"

// decode verifies stored bytes and checks they belong to the requested reference
func decode(b []byte, ref artifact.Ref) (*artifact.Artifact, error) {
	a, err := artifact.Decode(b)
	if err != nil {
		return nil, err
	}
	if a.Name != ref.Name {
		return nil, fmt.Errorf("%w: stored artifact is named %q, want %q", artifact.ErrCorrupt, a.Name, ref.Name)
	}
	if !ref.IsLatest() && a.Version != ref.Tag {
		return nil, fmt.Errorf("%w: stored artifact has version %s, want %s", artifact.ErrCorrupt, a.Version, ref.Tag)
	}
	return a, nil
}

// sortHandles orders handles newest first
func sortHandles(handles []artifact.Handle) {
	sort.Slice(handles, func(i, j int) bool {
		if !handles[i].CreatedAt.Equal(handles[j].CreatedAt) {
			return handles[i].CreatedAt.After(handles[j].CreatedAt)
		}
		return handles[i].Version < handles[j].Version
	})
}
