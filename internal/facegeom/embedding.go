package facegeom

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// Normalize returns v scaled to unit L2 norm. A zero vector is returned as a copy.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	norm := math.Sqrt(sum)
	if norm < 1e-10 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Emap is the 512x512 matrix mapping an ArcFace embedding into the
// swapper's latent space, stored row-major.
type Emap struct {
	m []float32
}

const emapLen = domain.EmbeddingSize * domain.EmbeddingSize

// NewEmap wraps a row-major 512x512 matrix.
func NewEmap(values []float32) (*Emap, error) {
	if len(values) != emapLen {
		return nil, fmt.Errorf("emap needs %d values, got %d", emapLen, len(values))
	}
	return &Emap{m: values}, nil
}

// ReadEmap decodes 512x512 little-endian float32 values.
func ReadEmap(r io.Reader) (*Emap, error) {
	values := make([]float32, emapLen)
	if err := binary.Read(r, binary.LittleEndian, values); err != nil {
		return nil, fmt.Errorf("read emap: %w", err)
	}
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("read emap: trailing data after %d values", emapLen)
	}
	return &Emap{m: values}, nil
}

func LoadEmap(path string) (*Emap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open emap: %w", err)
	}
	defer f.Close()
	return ReadEmap(f)
}

// Project computes normalize(embedding · emap).
func (e *Emap) Project(embedding []float32) ([]float32, error) {
	if len(embedding) != domain.EmbeddingSize {
		return nil, fmt.Errorf("embedding has %d values, want %d", len(embedding), domain.EmbeddingSize)
	}

	latent := make([]float32, domain.EmbeddingSize)
	for i, x := range embedding {
		if x == 0 {
			continue
		}
		row := e.m[i*domain.EmbeddingSize : (i+1)*domain.EmbeddingSize]
		for j, w := range row {
			latent[j] += x * w
		}
	}
	return Normalize(latent), nil
}
