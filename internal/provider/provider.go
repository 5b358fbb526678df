package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
)

// Extractor turns one captured frame into feature vectors, one per face it
// found. An empty result means no face was detected; that is not an error.
type Extractor interface {
	Extract(ctx context.Context, frame []byte) ([]biometric.FeatureVector, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, frame []byte) ([]biometric.FeatureVector, error)

func (f ExtractorFunc) Extract(ctx context.Context, frame []byte) ([]biometric.FeatureVector, error) {
	return f(ctx, frame)
}
