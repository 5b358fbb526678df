package deepface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelDimension(t *testing.T) {
	tests := []struct {
		model string
		dim   int
		known bool
	}{
		{"Dlib", 128, true},
		{"Facenet", 128, true},
		{"Facenet512", 512, true},
		{"VGG-Face", 4096, true},
		{"ArcFace", 512, true},
		{"dlib", 0, false},
		{"Unknown", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			dim, ok := ModelDimension(tt.model)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.dim, dim)
		})
	}
}

func TestDefaultConfig_ModelIsKnown(t *testing.T) {
	dim, ok := ModelDimension(DefaultConfig().Model)
	assert.True(t, ok)
	assert.Equal(t, 128, dim)
}
