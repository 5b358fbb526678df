package deepface

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider"
)

// Extractor implements provider.Extractor on top of the DeepFace /represent
// endpoint. Frames are raw encoded images (JPEG, PNG, WebP).
type Extractor struct {
	client *Client
}

// NewExtractor creates a new DeepFace extractor
func NewExtractor(config Config) *Extractor {
	return &Extractor{
		client: NewClient(config),
	}
}

func (e *Extractor) Extract(ctx context.Context, frame []byte) ([]biometric.FeatureVector, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	resp, err := e.client.Represent(ctx, dataURI(frame))
	if err != nil {
		// With enforce_detection on, an empty frame is reported as a 400.
		if isNoFaceError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("represent frame: %w", err)
	}

	vectors := make([]biometric.FeatureVector, 0, len(resp.Results))
	for _, result := range resp.Results {
		if len(result.Embedding) == 0 {
			continue
		}
		vectors = append(vectors, biometric.FeatureVector(result.Embedding))
	}

	return vectors, nil
}

func dataURI(frame []byte) string {
	mime := http.DetectContentType(frame)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(frame)
}

func isNoFaceError(err error) bool {
	if !isClientError(err) {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "face could not be detected")
}

var _ provider.Extractor = (*Extractor)(nil)
