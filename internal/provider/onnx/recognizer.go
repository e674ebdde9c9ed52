package onnx

import (
	"context"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/facegeom"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider"
)

const arcfaceSize = 112

var _ provider.Embedder = (*Recognizer)(nil)

// Recognizer computes ArcFace identity embeddings.
type Recognizer struct {
	session   *session
	inputSize int
}

func NewRecognizer(modelPath string) (*Recognizer, error) {
	s, err := newSession(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load recognizer: %w", err)
	}
	return &Recognizer{session: s, inputSize: s.inputSide(arcfaceSize)}, nil
}

// Embed aligns the face described by landmarks and returns its
// L2-normalized embedding.
func (r *Recognizer) Embed(ctx context.Context, img image.Image, landmarks domain.Landmarks) ([]float32, error) {
	m, err := matFromImage(img)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return r.embedMat(ctx, m, landmarks)
}

func (r *Recognizer) embedMat(ctx context.Context, img gocv.Mat, landmarks domain.Landmarks) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transform, err := facegeom.NormCrop(landmarks, r.inputSize)
	if err != nil {
		return nil, fmt.Errorf("embed: align: %w", err)
	}

	aligned := warp(img, transform, image.Pt(r.inputSize, r.inputSize))
	defer aligned.Close()

	input, err := blobTensor(aligned, 1.0/127.5, 127.5)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer input.Destroy()

	outputs, err := r.session.run([]ort.Value{input})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer destroyTensors(outputs)

	raw := outputs[0].GetData()
	if len(raw) < domain.EmbeddingSize {
		return nil, fmt.Errorf("embed: model returned %d values, want %d", len(raw), domain.EmbeddingSize)
	}
	return facegeom.Normalize(raw[:domain.EmbeddingSize]), nil
}

func (r *Recognizer) Close() error {
	return r.session.destroy()
}
