//go:build integration

package onnx

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/facegeom"
)

// Runs against real models: ORT_LIBRARY_PATH must point at the shared
// library and MODELS_DIR must hold det_10g.onnx, w600k_r50.onnx,
// inswapper_128.onnx and emap.bin.
func loadModels(t *testing.T) (*Analyzer, *Swapper) {
	t.Helper()

	lib, dir := os.Getenv("ORT_LIBRARY_PATH"), os.Getenv("MODELS_DIR")
	if lib == "" || dir == "" {
		t.Skip("ORT_LIBRARY_PATH and MODELS_DIR not set")
	}
	require.NoError(t, Initialize(lib))

	detector, err := NewDetector(filepath.Join(dir, "det_10g.onnx"), DefaultDetectSize, DefaultDetectThreshold)
	require.NoError(t, err)
	recognizer, err := NewRecognizer(filepath.Join(dir, "w600k_r50.onnx"))
	require.NoError(t, err)
	emap, err := facegeom.LoadEmap(filepath.Join(dir, "emap.bin"))
	require.NoError(t, err)
	swapper, err := NewSwapper(filepath.Join(dir, "inswapper_128.onnx"), emap)
	require.NoError(t, err)

	analyzer := NewAnalyzer(detector, recognizer)
	t.Cleanup(func() {
		assert.NoError(t, analyzer.Close())
		assert.NoError(t, swapper.Close())
		assert.NoError(t, Shutdown())
	})
	return analyzer, swapper
}

func uniform(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 180, 150, 130, 255
	}
	return img
}

func TestAnalyzer_BlankImageHasNoFaces(t *testing.T) {
	analyzer, _ := loadModels(t)

	faces, err := analyzer.Analyze(context.Background(), uniform(320, 240))
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestSwapper_PasteBackKeepsTargetSize(t *testing.T) {
	analyzer, swapper := loadModels(t)

	target := uniform(300, 200)
	var lm domain.Landmarks
	for i, p := range facegeom.Template(112) {
		lm[i] = domain.Point{X: p.X + 90, Y: p.Y + 40}
	}
	face := domain.FaceRecord{BoundingBox: domain.BoundingBox{X1: 90, Y1: 40, X2: 202, Y2: 152}, Landmarks: lm}

	emb, err := analyzer.Recognizer().Embed(context.Background(), target, lm)
	require.NoError(t, err)
	require.Len(t, emb, domain.EmbeddingSize)
	face.Embedding = emb

	out, err := swapper.Swap(context.Background(), target, face, face, true)
	require.NoError(t, err)
	assert.Equal(t, target.Bounds().Size(), out.Bounds().Size())

	crop, err := swapper.Swap(context.Background(), target, face, face, false)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(swapSize, swapSize), crop.Bounds().Size())
}
