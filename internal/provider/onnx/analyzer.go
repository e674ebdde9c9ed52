package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider"
)

const Name = "onnx"

var _ provider.FaceAnalyzer = (*Analyzer)(nil)

// Analyzer detects faces with SCRFD and embeds each one with ArcFace.
type Analyzer struct {
	detector   *Detector
	recognizer *Recognizer
}

func NewAnalyzer(detector *Detector, recognizer *Recognizer) *Analyzer {
	return &Analyzer{detector: detector, recognizer: recognizer}
}

func (a *Analyzer) Analyze(ctx context.Context, img image.Image) ([]domain.FaceRecord, error) {
	m, err := matFromImage(img)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	faces, err := a.detector.Detect(ctx, m)
	if err != nil {
		return nil, err
	}

	for i := range faces {
		emb, err := a.recognizer.embedMat(ctx, m, faces[i].Landmarks)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		faces[i].Embedding = emb
	}
	return faces, nil
}

func (a *Analyzer) Name() string {
	return Name
}

// Recognizer exposes the embedding model so other detectors can share it.
func (a *Analyzer) Recognizer() *Recognizer {
	return a.recognizer
}

func (a *Analyzer) Close() error {
	return errors.Join(a.detector.Close(), a.recognizer.Close())
}
