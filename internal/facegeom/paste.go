package facegeom

import (
	"fmt"
	"math"
)

const maskThreshold = 20

// BinarizeMask sets every value of a single-channel mask above the warp
// threshold to 255 and the rest to 0, then returns the mask size: the square
// root of the area of the bounding box around the 255 region. ok is false
// when nothing survives, i.e. the face was warped entirely off-canvas.
func BinarizeMask(mask []byte, width int) (size int, ok bool) {
	if width <= 0 || len(mask)%width != 0 {
		return 0, false
	}

	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := -1, -1
	for i, v := range mask {
		if v <= maskThreshold {
			mask[i] = 0
			continue
		}
		mask[i] = 255
		x, y := i%width, i/width
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	if maxX < 0 {
		return 0, false
	}
	return int(math.Sqrt(float64((maxX - minX) * (maxY - minY)))), true
}

// PasteKernels returns the erosion kernel side and the odd Gaussian blur
// kernel side used to feather a mask of the given size.
func PasteKernels(maskSize int) (erode, blur int) {
	erode = max(maskSize/10, 10)
	blur = 2*max(maskSize/20, 5) + 1
	return erode, blur
}

// Blend composites fake over dst in place: dst = m*fake + (1-m)*dst, where
// m is the single-channel mask scaled to [0,1]. dst and fake are interleaved
// with the same channel count.
func Blend(dst, fake, mask []byte, channels int) error {
	if len(dst) != len(fake) || len(dst) != len(mask)*channels {
		return fmt.Errorf("blend: size mismatch (dst %d, fake %d, mask %d x %d)",
			len(dst), len(fake), len(mask), channels)
	}

	for p, mv := range mask {
		if mv == 0 {
			continue
		}
		m := float32(mv) / 255
		base := p * channels
		for c := 0; c < channels; c++ {
			v := m*float32(fake[base+c]) + (1-m)*float32(dst[base+c])
			dst[base+c] = uint8(min(max(v+0.5, 0), 255))
		}
	}
	return nil
}
