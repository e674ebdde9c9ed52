// Package facegeom holds the model-independent math around face models:
// landmark alignment, anchor decoding, suppression and embedding projection.
package facegeom

import (
	"errors"
	"math"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// arcfaceTemplate is the 112x112 ArcFace reference position of the five landmarks.
var arcfaceTemplate = [5][2]float64{
	{38.2946, 51.6963},
	{73.5318, 51.5014},
	{56.0252, 71.7366},
	{41.5493, 92.3655},
	{70.7299, 92.2041},
}

// Affine is a 2x3 row-major affine transform.
type Affine [2][3]float64

func Identity() Affine {
	return Affine{{1, 0, 0}, {0, 1, 0}}
}

func (a Affine) Apply(p domain.Point) domain.Point {
	x, y := float64(p.X), float64(p.Y)
	return domain.Point{
		X: float32(a[0][0]*x + a[0][1]*y + a[0][2]),
		Y: float32(a[1][0]*x + a[1][1]*y + a[1][2]),
	}
}

// Invert returns the inverse transform.
func (a Affine) Invert() (Affine, error) {
	det := a[0][0]*a[1][1] - a[0][1]*a[1][0]
	if math.Abs(det) < 1e-12 {
		return Affine{}, errors.New("affine transform is singular")
	}

	ia := a[1][1] / det
	ib := -a[0][1] / det
	ic := -a[1][0] / det
	id := a[0][0] / det

	return Affine{
		{ia, ib, -(ia*a[0][2] + ib*a[1][2])},
		{ic, id, -(ic*a[0][2] + id*a[1][2])},
	}, nil
}

// Scale returns the isotropic scale of a similarity transform.
func (a Affine) Scale() float64 {
	return math.Hypot(a[0][0], a[1][0])
}

// EstimateSimilarity fits the least-squares rotation, uniform scale and
// translation that maps src onto dst.
func EstimateSimilarity(src, dst []domain.Point) (Affine, error) {
	n := len(src)
	if n < 2 || n != len(dst) {
		return Affine{}, errors.New("similarity needs at least two matching point pairs")
	}

	var sx, sy, dx, dy float64
	for i := 0; i < n; i++ {
		sx += float64(src[i].X)
		sy += float64(src[i].Y)
		dx += float64(dst[i].X)
		dy += float64(dst[i].Y)
	}
	fn := float64(n)
	sx, sy, dx, dy = sx/fn, sy/fn, dx/fn, dy/fn

	var srcVar, a, b float64
	for i := 0; i < n; i++ {
		px := float64(src[i].X) - sx
		py := float64(src[i].Y) - sy
		qx := float64(dst[i].X) - dx
		qy := float64(dst[i].Y) - dy

		srcVar += px*px + py*py
		a += px*qx + py*qy
		b += px*qy - py*qx
	}
	if srcVar < 1e-12 {
		return Affine{}, errors.New("source points are degenerate")
	}

	c := a / srcVar // scale * cos
	s := b / srcVar // scale * sin

	return Affine{
		{c, -s, dx - (c*sx - s*sy)},
		{s, c, dy - (s*sx + c*sy)},
	}, nil
}

// Template returns the five reference landmarks for a square crop of size
// pixels. Multiples of 112 scale the ArcFace template; other sizes follow
// the 128-based layout with an 8px horizontal shift, as inswapper expects.
func Template(size int) []domain.Point {
	ratio, shift := float64(size)/112.0, 0.0
	if size%112 != 0 {
		ratio = float64(size) / 128.0
		shift = 8.0 * ratio
	}

	pts := make([]domain.Point, len(arcfaceTemplate))
	for i, p := range arcfaceTemplate {
		pts[i] = domain.Point{
			X: float32(p[0]*ratio + shift),
			Y: float32(p[1] * ratio),
		}
	}
	return pts
}

// NormCrop returns the transform that maps a face's landmarks onto the
// reference template of a size x size crop.
func NormCrop(landmarks domain.Landmarks, size int) (Affine, error) {
	return EstimateSimilarity(landmarks[:], Template(size))
}
