package onnx

import (
	"context"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/facegeom"
)

const (
	DefaultDetectSize      = 640
	DefaultDetectThreshold = 0.5
	nmsThreshold           = 0.4
)

// Detector is the SCRFD face detector.
type Detector struct {
	session   *session
	inputSize int
	threshold float32
	strides   []int
	anchors   int
	levels    int
}

// NewDetector loads an SCRFD model. inputSize is used when the model input is
// dynamic; a fixed model input wins.
func NewDetector(modelPath string, inputSize int, threshold float32) (*Detector, error) {
	s, err := newSession(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	d := &Detector{
		session:   s,
		inputSize: s.inputSide(inputSize),
		threshold: threshold,
	}

	// SCRFD exports come in two layouts: three strides with two anchors per
	// cell, or five strides with one. Keypoints add a third group.
	switch len(s.outputs) {
	case 6, 9:
		d.levels, d.strides, d.anchors = 3, []int{8, 16, 32}, 2
	case 10, 15:
		d.levels, d.strides, d.anchors = 5, []int{8, 16, 32, 64, 128}, 1
	default:
		_ = s.destroy()
		return nil, fmt.Errorf("load detector: unexpected SCRFD output count %d", len(s.outputs))
	}
	if len(s.outputs) != d.levels*3 {
		_ = s.destroy()
		return nil, fmt.Errorf("load detector: %s has no keypoint outputs, alignment needs five landmarks", modelPath)
	}
	if top := d.strides[len(d.strides)-1]; d.inputSize%top != 0 {
		_ = s.destroy()
		return nil, fmt.Errorf("load detector: input size %d is not a multiple of %d", d.inputSize, top)
	}

	return d, nil
}

// Detect returns the faces in a BGR image, highest score first.
func (d *Detector) Detect(ctx context.Context, img gocv.Mat) ([]domain.FaceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, scale, err := d.preprocess(img)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	outputs, err := d.session.run([]ort.Value{input})
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer destroyTensors(outputs)

	levels := make([]facegeom.SCRFDLevel, d.levels)
	for i, stride := range d.strides {
		levels[i] = facegeom.SCRFDLevel{
			Stride:    stride,
			Scores:    outputs[i].GetData(),
			Boxes:     outputs[i+d.levels].GetData(),
			Keypoints: outputs[i+2*d.levels].GetData(),
		}
	}

	faces, err := facegeom.DecodeSCRFD(levels, d.inputSize, d.anchors, d.threshold, scale)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return facegeom.NMS(faces, nmsThreshold), nil
}

// preprocess letterboxes img into the top-left of a square black canvas.
func (d *Detector) preprocess(img gocv.Mat) (*ort.Tensor[float32], float32, error) {
	newW, newH, scale := facegeom.Letterbox(img.Cols(), img.Rows(), d.inputSize)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationLinear)

	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), d.inputSize, d.inputSize, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	roi := canvas.Region(image.Rect(0, 0, newW, newH))
	resized.CopyTo(&roi)
	roi.Close()

	t, err := blobTensor(canvas, 1.0/128.0, 127.5)
	if err != nil {
		return nil, 0, fmt.Errorf("detect: %w", err)
	}
	return t, scale, nil
}

func (d *Detector) Close() error {
	return d.session.destroy()
}
