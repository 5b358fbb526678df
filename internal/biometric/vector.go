// Package biometric holds the face matching core: feature vectors, the
// distance metric and the thresholded nearest-neighbour matcher.
package biometric

import (
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// Method identifies the extractor family that produced a vector. Vectors of
// different methods are never comparable.
type Method string

const (
	// MethodEmbedding is a holistic appearance embedding (face-api.js, dlib, DeepFace).
	MethodEmbedding Method = "embedding"
	// MethodLandmarkMesh is a flattened list of 3-D landmark coordinates (MediaPipe FaceMesh).
	MethodLandmarkMesh Method = "landmark_mesh"
)

// FeatureVector is the numeric representation of one face.
type FeatureVector []float64

// Finite reports whether every component is a real number.
func (v FeatureVector) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Profile binds an extraction method to the metric and threshold that are
// valid for its vectors. It is deployment configuration, fixed for the
// lifetime of a session.
type Profile struct {
	Name       string
	Method     Method
	Dimension  int
	Normalized bool
	Threshold  float64
}

// Validate checks the profile once, before any session uses it.
func (p Profile) Validate() error {
	switch p.Method {
	case MethodEmbedding, MethodLandmarkMesh:
	default:
		return domain.ErrInvalidProfile.WithError(fmt.Errorf("profile %q: unknown method %q", p.Name, p.Method))
	}
	if p.Dimension <= 0 {
		return domain.ErrInvalidProfile.WithError(fmt.Errorf("profile %q: dimension must be positive, got %d", p.Name, p.Dimension))
	}
	if p.Method == MethodLandmarkMesh && p.Dimension%3 != 0 {
		return domain.ErrInvalidProfile.WithError(fmt.Errorf("profile %q: landmark mesh dimension %d is not a multiple of 3", p.Name, p.Dimension))
	}
	if p.Threshold <= 0 || math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return domain.ErrInvalidProfile.WithError(fmt.Errorf("profile %q: threshold must be a positive number, got %v", p.Name, p.Threshold))
	}
	return nil
}

// Conforms checks that v was plausibly produced by the profile's extractor.
func (p Profile) Conforms(v FeatureVector) error {
	if len(v) != p.Dimension {
		return domain.ErrDimensionMismatch.WithError(fmt.Errorf("vector has %d components, profile %q expects %d", len(v), p.Name, p.Dimension))
	}
	if !v.Finite() {
		return domain.ErrDimensionMismatch.WithError(fmt.Errorf("vector contains non-finite components"))
	}
	return nil
}
