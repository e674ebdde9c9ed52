package onnx

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/facegeom"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/imaging"
)

// matFromImage copies img into a BGR Mat. The Mat must be closed.
func matFromImage(img image.Image) (gocv.Mat, error) {
	data, w, h := imaging.ToBGR(img)
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("image to mat: %w", err)
	}
	return m, nil
}

func affineMat(a facegeom.Affine) gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, a[r][c])
		}
	}
	return m
}

// warp applies a with bilinear sampling and a black constant border.
func warp(src gocv.Mat, a facegeom.Affine, size image.Point) gocv.Mat {
	m := affineMat(a)
	defer m.Close()

	dst := gocv.NewMat()
	gocv.WarpAffine(src, &dst, m, size)
	return dst
}

// blobTensor builds a 1x3xHxW RGB tensor from a BGR Mat:
// (pixel - mean) * scale, channels swapped.
func blobTensor(m gocv.Mat, scale, mean float64) (*ort.Tensor[float32], error) {
	size := image.Pt(m.Cols(), m.Rows())
	blob := gocv.BlobFromImage(m, scale, size, gocv.NewScalar(mean, mean, mean, 0), true, false)
	defer blob.Close()

	data := bytesToFloat32(blob.ToBytes())
	t, err := ort.NewTensor(ort.NewShape(1, 3, int64(size.Y), int64(size.X)), data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	return t, nil
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}

func clampByte(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
