package biometric

import (
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// Distance returns the Euclidean distance between two vectors of equal length.
// Used for holistic embeddings.
func Distance(a, b FeatureVector) (float64, error) {
	sum, err := sumSquares(a, b)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sum), nil
}

// NormalizedDistance divides the sum of squares by the vector length before
// taking the root. Used for per-landmark coordinate vectors.
func NormalizedDistance(a, b FeatureVector) (float64, error) {
	sum, err := sumSquares(a, b)
	if err != nil {
		return 0, err
	}
	if len(a) == 0 {
		return 0, nil
	}
	return math.Sqrt(sum / float64(len(a))), nil
}

// Distance applies the metric of the profile. Both vectors must have the
// profile's dimension.
func (p Profile) Distance(a, b FeatureVector) (float64, error) {
	if len(a) != p.Dimension || len(b) != p.Dimension {
		return 0, domain.ErrDimensionMismatch.WithError(
			fmt.Errorf("profile %q expects %d components, got %d and %d", p.Name, p.Dimension, len(a), len(b)))
	}
	if p.Normalized {
		return NormalizedDistance(a, b)
	}
	return Distance(a, b)
}

func sumSquares(a, b FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDimensionMismatch.WithError(fmt.Errorf("len %d != len %d", len(a), len(b)))
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum, nil
}
