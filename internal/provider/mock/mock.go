package mock

import (
	"context"
	"crypto/sha256"
	"errors"
	"image"
	"image/color"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/facegeom"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/imaging"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider"
)

const Name = "mock"

// Analyzer implementa provider.FaceAnalyzer para testes e desenvolvimento.
// Imagens uniformes (em branco) não têm face; qualquer outra tem uma face
// centralizada.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Analyze(ctx context.Context, img image.Image) ([]domain.FaceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rgba := imaging.ToRGBA(img)
	if isUniform(rgba) {
		return []domain.FaceRecord{}, nil
	}

	w, h := float32(rgba.Rect.Dx()), float32(rgba.Rect.Dy())
	box := domain.BoundingBox{X1: w * 0.25, Y1: h * 0.2, X2: w * 0.75, Y2: h * 0.8}

	// template de alinhamento projetado na caixa
	var lm domain.Landmarks
	for i, p := range facegeom.Template(112) {
		lm[i] = domain.Point{
			X: box.X1 + p.X/112*box.Width(),
			Y: box.Y1 + p.Y/112*box.Height(),
		}
	}

	return []domain.FaceRecord{{
		BoundingBox: box,
		Landmarks:   lm,
		Score:       0.99,
		Embedding:   generateEmbedding(rgba.Pix),
	}}, nil
}

func (a *Analyzer) Name() string { return Name }

func (a *Analyzer) Close() error { return nil }

// Swapper implementa provider.FaceSwapper: tinge a caixa da face alvo com uma
// cor derivada do embedding da face de origem.
type Swapper struct{}

func NewSwapper() *Swapper {
	return &Swapper{}
}

func (s *Swapper) Swap(ctx context.Context, target image.Image, targetFace, sourceFace domain.FaceRecord, pasteBack bool) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(sourceFace.Embedding) != domain.EmbeddingSize {
		return nil, errors.New("mock swap: source face has no embedding")
	}

	out := imaging.Resize(target, target.Bounds().Size())

	tint := signature(sourceFace.Embedding)
	r := image.Rect(
		int(targetFace.BoundingBox.X1), int(targetFace.BoundingBox.Y1),
		int(targetFace.BoundingBox.X2), int(targetFace.BoundingBox.Y2),
	).Intersect(out.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := out.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8((uint16(c.R) + uint16(tint.R)) / 2),
				G: uint8((uint16(c.G) + uint16(tint.G)) / 2),
				B: uint8((uint16(c.B) + uint16(tint.B)) / 2),
				A: 255,
			})
		}
	}

	if !pasteBack {
		return imaging.Crop(out, targetFace.BoundingBox)
	}
	return out, nil
}

func (s *Swapper) Name() string { return Name }

func (s *Swapper) Close() error { return nil }

func isUniform(img *image.RGBA) bool {
	if len(img.Pix) < 4 {
		return true
	}
	first := img.Pix[:4]
	for i := 4; i < len(img.Pix); i += 4 {
		if img.Pix[i] != first[0] || img.Pix[i+1] != first[1] || img.Pix[i+2] != first[2] {
			return false
		}
	}
	return true
}

// generateEmbedding gera embedding determinístico baseado no hash da imagem
func generateEmbedding(pixels []byte) []float32 {
	hash := sha256.Sum256(pixels)
	embedding := make([]float32, domain.EmbeddingSize)
	hashLen := len(hash)

	for i := 0; i < domain.EmbeddingSize; i++ {
		idx := i % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		embedding[i] = (float32(hash[idx])/255.0)*2 - 1
	}

	return facegeom.Normalize(embedding)
}

func signature(embedding []float32) color.RGBA {
	channel := func(v float32) uint8 {
		return uint8(min(max((v+1)/2, 0), 1) * 255)
	}
	return color.RGBA{R: channel(embedding[0]), G: channel(embedding[1]), B: channel(embedding[2]), A: 255}
}

var (
	_ provider.FaceAnalyzer = (*Analyzer)(nil)
	_ provider.FaceSwapper  = (*Swapper)(nil)
)
