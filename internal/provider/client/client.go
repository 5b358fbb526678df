// Package client implements an extractor for browsers that run their own
// face detector (face-api.js descriptors, MediaPipe FaceMesh landmarks) and
// upload the resulting vectors instead of camera images.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider"
)

var ErrMalformedFrame = errors.New("malformed client frame")

// Frame is the payload the browser posts for every captured video frame.
type Frame struct {
	Faces [][]float64 `json:"faces"`
}

// Extractor decodes client frames. It performs no detection itself.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, frame []byte) ([]biometric.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var f Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	vectors := make([]biometric.FeatureVector, 0, len(f.Faces))
	for _, face := range f.Faces {
		vectors = append(vectors, biometric.FeatureVector(face))
	}
	return vectors, nil
}

// Encode builds a frame payload, mostly for tests and the CLI.
func Encode(faces ...biometric.FeatureVector) ([]byte, error) {
	f := Frame{Faces: make([][]float64, 0, len(faces))}
	for _, v := range faces {
		f.Faces = append(f.Faces, v)
	}
	return json.Marshal(f)
}

var _ provider.Extractor = (*Extractor)(nil)
