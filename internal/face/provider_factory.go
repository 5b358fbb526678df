package face

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/config"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider/client"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider/mock"
)

// ExtractorType defines supported feature extractor types
type ExtractorType string

const (
	// ExtractorTypeClient decodes vectors computed in the browser
	ExtractorTypeClient ExtractorType = "client"
	// ExtractorTypeDeepFace sends camera frames to a DeepFace service
	ExtractorTypeDeepFace ExtractorType = "deepface"
	// ExtractorTypeMock derives vectors from frame bytes (dev/test)
	ExtractorTypeMock ExtractorType = "mock"
)

// NewExtractor creates an Extractor instance based on configuration. The
// profile is checked against what the extractor can produce, so a session
// never compares vectors from a method the profile was not tuned for.
//
// Environment variables:
//   - EXTRACTOR_TYPE: "client", "deepface" or "mock" (default: "client")
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5000")
//   - DEEPFACE_MODEL: DeepFace model name (default: "Dlib")
//   - DEEPFACE_DETECTOR: DeepFace detector backend (default: "opencv")
func NewExtractor(cfg *config.Config, profile biometric.Profile) (provider.Extractor, error) {
	extractorType := ExtractorType(cfg.ExtractorType)

	switch extractorType {
	case ExtractorTypeClient, "":
		return client.New(), nil

	case ExtractorTypeDeepFace:
		if profile.Method != biometric.MethodEmbedding {
			return nil, fmt.Errorf("deepface extractor produces %s vectors, profile %q uses %s",
				biometric.MethodEmbedding, profile.Name, profile.Method)
		}
		return createDeepFaceExtractor(cfg, profile)

	case ExtractorTypeMock:
		return mock.New(profile.Dimension), nil

	default:
		return nil, fmt.Errorf("unknown extractor type: %s (supported: %s, %s, %s)",
			cfg.ExtractorType, ExtractorTypeClient, ExtractorTypeDeepFace, ExtractorTypeMock)
	}
}

// createDeepFaceExtractor creates a DeepFace extractor whose model emits
// vectors of the profile's dimension.
func createDeepFaceExtractor(cfg *config.Config, profile biometric.Profile) (provider.Extractor, error) {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}

	dim, ok := deepface.ModelDimension(deepfaceConfig.Model)
	if !ok {
		return nil, fmt.Errorf("unknown deepface model %q", deepfaceConfig.Model)
	}
	if dim != profile.Dimension {
		return nil, fmt.Errorf("deepface model %s produces %d-d vectors, profile %q expects %d",
			deepfaceConfig.Model, dim, profile.Name, profile.Dimension)
	}

	return deepface.NewExtractor(deepfaceConfig), nil
}
