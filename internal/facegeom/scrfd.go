package facegeom

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// SCRFDLevel holds one stride's raw detector outputs: one score per anchor,
// four box distances and (optionally) ten keypoint offsets per anchor, all in
// units of the stride.
type SCRFDLevel struct {
	Stride    int
	Scores    []float32
	Boxes     []float32
	Keypoints []float32
}

// DecodeSCRFD turns anchor-relative outputs into faces in original image
// coordinates. scale is the factor the image was resized by before
// letterboxing into the inputSize x inputSize canvas.
func DecodeSCRFD(levels []SCRFDLevel, inputSize, anchorsPerCell int, threshold, scale float32) ([]domain.FaceRecord, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("invalid detection scale %f", scale)
	}

	var faces []domain.FaceRecord
	for _, lvl := range levels {
		width := inputSize / lvl.Stride
		height := inputSize / lvl.Stride
		anchors := width * height * anchorsPerCell

		if len(lvl.Scores) < anchors || len(lvl.Boxes) < anchors*4 {
			return nil, fmt.Errorf("stride %d: got %d scores and %d box values for %d anchors",
				lvl.Stride, len(lvl.Scores), len(lvl.Boxes), anchors)
		}
		hasKps := len(lvl.Keypoints) >= anchors*10
		stride := float32(lvl.Stride)

		for k := 0; k < anchors; k++ {
			score := lvl.Scores[k]
			if score < threshold {
				continue
			}

			cell := k / anchorsPerCell
			cx := float32(cell%width) * stride
			cy := float32(cell/width) * stride

			d := lvl.Boxes[k*4 : k*4+4]
			face := domain.FaceRecord{
				BoundingBox: domain.BoundingBox{
					X1: (cx - d[0]*stride) / scale,
					Y1: (cy - d[1]*stride) / scale,
					X2: (cx + d[2]*stride) / scale,
					Y2: (cy + d[3]*stride) / scale,
				},
				Score: score,
			}
			if hasKps {
				kp := lvl.Keypoints[k*10 : k*10+10]
				for i := 0; i < 5; i++ {
					face.Landmarks[i] = domain.Point{
						X: (cx + kp[i*2]*stride) / scale,
						Y: (cy + kp[i*2+1]*stride) / scale,
					}
				}
			}
			faces = append(faces, face)
		}
	}
	return faces, nil
}

// Letterbox returns the size an image is resized to so it fits an
// inputSize square without distortion, and the scale factor used.
func Letterbox(width, height, inputSize int) (newWidth, newHeight int, scale float32) {
	if float64(height)/float64(width) > 1 {
		newHeight = inputSize
		newWidth = int(float64(newHeight) * float64(width) / float64(height))
	} else {
		newWidth = inputSize
		newHeight = int(float64(newWidth) * float64(height) / float64(width))
	}
	newWidth = max(newWidth, 1)
	newHeight = max(newHeight, 1)
	return newWidth, newHeight, float32(newHeight) / float32(height)
}
