package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/facegeom"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/imaging"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider"
)

const swapSize = 128

var _ provider.FaceSwapper = (*Swapper)(nil)

// ErrFaceOffCanvas is returned when the swapped face lands entirely outside
// the target image.
var ErrFaceOffCanvas = errors.New("swapped face falls outside the target image")

// Swapper runs inswapper_128 and pastes the generated face back.
type Swapper struct {
	session   *session
	emap      *facegeom.Emap
	inputSize int
	// index of the latent input; the other input is the face crop
	latentInput int
}

func NewSwapper(modelPath string, emap *facegeom.Emap) (*Swapper, error) {
	if emap == nil {
		return nil, errors.New("load swapper: emap is required")
	}

	s, err := newSession(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load swapper: %w", err)
	}
	if len(s.inputs) != 2 {
		_ = s.destroy()
		return nil, fmt.Errorf("load swapper: %s has %d inputs, want 2", modelPath, len(s.inputs))
	}

	latent := 1
	if dims := s.inputs[0].Dimensions; len(dims) == 2 {
		latent = 0
	}

	return &Swapper{
		session:     s,
		emap:        emap,
		inputSize:   s.inputSide(swapSize),
		latentInput: latent,
	}, nil
}

func (s *Swapper) Swap(ctx context.Context, target image.Image, targetFace, sourceFace domain.FaceRecord, pasteBack bool) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	latent, err := s.emap.Project(sourceFace.Embedding)
	if err != nil {
		return nil, fmt.Errorf("swap: source embedding: %w", err)
	}

	transform, err := facegeom.NormCrop(targetFace.Landmarks, s.inputSize)
	if err != nil {
		return nil, fmt.Errorf("swap: align target: %w", err)
	}

	frame, err := matFromImage(target)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	fake, err := s.generate(frame, transform, latent)
	if err != nil {
		return nil, err
	}

	if !pasteBack {
		return imaging.FromBGR(fake, s.inputSize, s.inputSize)
	}
	return s.pasteBack(frame, fake, transform)
}

// generate returns the swapped face crop as packed BGR bytes.
func (s *Swapper) generate(frame gocv.Mat, transform facegeom.Affine, latent []float32) ([]byte, error) {
	crop := warp(frame, transform, image.Pt(s.inputSize, s.inputSize))
	defer crop.Close()

	faceTensor, err := blobTensor(crop, 1.0/255.0, 0)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	defer faceTensor.Destroy()

	latentTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(latent))), latent)
	if err != nil {
		return nil, fmt.Errorf("swap: create latent tensor: %w", err)
	}
	defer latentTensor.Destroy()

	inputs := []ort.Value{faceTensor, latentTensor}
	if s.latentInput == 0 {
		inputs[0], inputs[1] = latentTensor, faceTensor
	}

	outputs, err := s.session.run(inputs)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	defer destroyTensors(outputs)

	// NCHW RGB in [0,1] -> packed BGR
	plane := s.inputSize * s.inputSize
	data := outputs[0].GetData()
	if len(data) < 3*plane {
		return nil, fmt.Errorf("swap: model returned %d values, want %d", len(data), 3*plane)
	}

	out := make([]byte, plane*3)
	for p := 0; p < plane; p++ {
		out[p*3] = clampByte(data[2*plane+p] * 255)
		out[p*3+1] = clampByte(data[plane+p] * 255)
		out[p*3+2] = clampByte(data[p] * 255)
	}
	return out, nil
}

// pasteBack warps the generated crop into frame coordinates and feathers it
// in with an eroded, blurred copy of the warped crop footprint.
func (s *Swapper) pasteBack(frame gocv.Mat, fake []byte, transform facegeom.Affine) (image.Image, error) {
	inverse, err := transform.Invert()
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	frameSize := image.Pt(frame.Cols(), frame.Rows())

	fakeMat, err := gocv.NewMatFromBytes(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3, fake)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	defer fakeMat.Close()

	warpedFake := warp(fakeMat, inverse, frameSize)
	defer warpedFake.Close()

	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), s.inputSize, s.inputSize, gocv.MatTypeCV8U)
	defer white.Close()

	warpedWhite := warp(white, inverse, frameSize)
	defer warpedWhite.Close()

	maskBytes := warpedWhite.ToBytes()
	maskSize, ok := facegeom.BinarizeMask(maskBytes, frameSize.X)
	if !ok {
		return nil, fmt.Errorf("swap: %w", ErrFaceOffCanvas)
	}
	erodeK, blurK := facegeom.PasteKernels(maskSize)

	mask, err := gocv.NewMatFromBytes(frameSize.Y, frameSize.X, gocv.MatTypeCV8U, maskBytes)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	defer mask.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(erodeK, erodeK))
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(mask, &eroded, kernel)

	feathered := gocv.NewMat()
	defer feathered.Close()
	gocv.GaussianBlur(eroded, &feathered, image.Pt(blurK, blurK), 0, 0, gocv.BorderDefault)

	out := frame.ToBytes()
	if err := facegeom.Blend(out, warpedFake.ToBytes(), feathered.ToBytes(), 3); err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	return imaging.FromBGR(out, frameSize.X, frameSize.Y)
}

func (s *Swapper) Name() string {
	return Name
}

func (s *Swapper) Close() error {
	return s.session.destroy()
}
