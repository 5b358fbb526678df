package mock

import (
	"bytes"
	"context"
	"crypto/sha256"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider"
)

// Frame markers understood by the mock extractor.
var (
	NoFaceFrame    = []byte("mock:no-face")
	TwoFacesPrefix = []byte("mock:two-faces:")
)

// Extractor implements provider.Extractor for development and tests. The
// same frame always yields the same vector, so a "person" is just a byte
// string.
type Extractor struct {
	dimension int
}

// New creates a mock extractor producing vectors of the given dimension.
func New(dimension int) *Extractor {
	return &Extractor{dimension: dimension}
}

func (e *Extractor) Extract(ctx context.Context, frame []byte) ([]biometric.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(frame) == 0, bytes.Equal(frame, NoFaceFrame):
		return nil, nil
	case bytes.HasPrefix(frame, TwoFacesPrefix):
		rest := frame[len(TwoFacesPrefix):]
		return []biometric.FeatureVector{
			Vector(rest, e.dimension),
			Vector(append([]byte("second:"), rest...), e.dimension),
		}, nil
	}

	return []biometric.FeatureVector{Vector(frame, e.dimension)}, nil
}

// Vector derives a deterministic vector with components in [0, 1) from the
// hash of seed. Values stay small so distances between different seeds land
// well above the embedding threshold.
func Vector(seed []byte, dimension int) biometric.FeatureVector {
	hash := sha256.Sum256(seed)
	v := make(biometric.FeatureVector, dimension)
	hashLen := len(hash)

	for i := 0; i < dimension; i++ {
		idx := i % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		v[i] = float64(hash[idx]) / 256.0
	}

	return v
}

var _ provider.Extractor = (*Extractor)(nil)
