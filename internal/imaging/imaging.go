// Package imaging holds the raster plumbing around the models: decoding
// uploads, the target resize policy, face crops and JPEG encoding.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

const (
	DefaultJPEGQuality = 95
	// DefaultMaxPixels caps the decoded raster at 40 megapixels.
	DefaultMaxPixels = 40_000_000
)

var ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")

// Decode reads a JPEG, PNG or WebP image and returns it with its format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("decode image: empty %s image", format)
	}
	return img, format, nil
}

// DecodeFile decodes the image at path. The header is checked first and
// images above maxPixels are rejected before any raster is allocated.
// A maxPixels of zero or less disables the check.
func DecodeFile(path string, maxPixels int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("decode image header: %w", err)
		}
		if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
			return nil, fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind image: %w", err)
		}
	}

	img, _, err := Decode(f)
	return img, err
}

// TargetSize returns the size the target image is normalized to before
// analysis: width min(maxWidth, sourceWidth) with the target aspect ratio.
func TargetSize(sourceWidth int, target image.Point, maxWidth int) image.Point {
	width := min(maxWidth, sourceWidth)
	if width < 1 {
		width = 1
	}
	if target.X <= 0 || target.Y <= 0 {
		return image.Pt(width, width)
	}

	height := int(math.Round(float64(width) * float64(target.Y) / float64(target.X)))
	if height < 1 {
		height = 1
	}
	return image.Pt(width, height)
}

// Resize scales img to size with bilinear filtering. The result origin is (0,0).
func Resize(img image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	if img.Bounds().Size() == size {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ToRGBA returns img as a zero-origin RGBA, copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Crop copies the face box out of img, clamped to the image bounds.
func Crop(img image.Image, box domain.BoundingBox) (*image.RGBA, error) {
	b := img.Bounds()
	r := image.Rect(
		b.Min.X+int(math.Floor(float64(box.X1))),
		b.Min.Y+int(math.Floor(float64(box.Y1))),
		b.Min.X+int(math.Ceil(float64(box.X2))),
		b.Min.Y+int(math.Ceil(float64(box.Y2))),
	).Intersect(b)
	if r.Empty() {
		return nil, fmt.Errorf("crop: box %v outside image %v", box, b)
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToBGR returns the pixels of img as tightly packed 8-bit BGR rows, the
// layout OpenCV expects.
func ToBGR(img image.Image) (data []byte, width, height int) {
	rgba := ToRGBA(img)
	width, height = rgba.Rect.Dx(), rgba.Rect.Dy()
	data = make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+width*4]
		for x := 0; x < width; x++ {
			o := (y*width + x) * 3
			data[o] = row[x*4+2]
			data[o+1] = row[x*4+1]
			data[o+2] = row[x*4]
		}
	}
	return data, width, height
}

// FromBGR builds an opaque RGBA image from packed BGR rows.
func FromBGR(data []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(data) != width*height*3 {
		return nil, fmt.Errorf("bgr buffer of %d bytes does not match %dx%d", len(data), width, height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, o := 0, 0; i < len(data); i, o = i+3, o+4 {
		dst.Pix[o] = data[i+2]
		dst.Pix[o+1] = data[i+1]
		dst.Pix[o+2] = data[i]
		dst.Pix[o+3] = 0xff
	}
	return dst, nil
}
