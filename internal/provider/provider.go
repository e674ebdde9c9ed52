package provider

import (
	"context"
	"image"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// FaceAnalyzer finds faces in an image
type FaceAnalyzer interface {
	// Analyze returns every detected face in detector order. An image with
	// no faces yields an empty slice, not an error.
	Analyze(ctx context.Context, img image.Image) ([]domain.FaceRecord, error)

	// Name identifies the backend in logs, metrics and audit events
	Name() string

	Close() error
}

// FaceSwapper composites a source identity onto a target face
type FaceSwapper interface {
	// Swap renders sourceFace's identity at targetFace's position in target.
	// With pasteBack the result has target's dimensions; without it the
	// aligned face crop is returned.
	Swap(ctx context.Context, target image.Image, targetFace, sourceFace domain.FaceRecord, pasteBack bool) (image.Image, error)

	Name() string

	Close() error
}

// Embedder computes an identity embedding for a face given its landmarks
type Embedder interface {
	Embed(ctx context.Context, img image.Image, landmarks domain.Landmarks) ([]float32, error)
}
