// Package onnx runs the insightface model family (SCRFD detection, ArcFace
// recognition and the inswapper generator) through ONNX Runtime, with OpenCV
// doing the warping and blob preparation.
package onnx

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initialized bool
	initMu      sync.Mutex
)

// ErrNotInitialized is returned when a model is loaded before Initialize.
var ErrNotInitialized = errors.New("onnx runtime not initialized")

// Initialize loads the ONNX Runtime shared library and sets up the
// process-wide environment. Calling it again is a no-op.
func Initialize(libraryPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	ort.SetSharedLibraryPath(libraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx runtime from %s: %w", libraryPath, err)
	}

	initialized = true
	return nil
}

// Shutdown tears the environment down. Every session must be destroyed first.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("destroy onnx runtime: %w", err)
	}

	initialized = false
	return nil
}

func isInitialized() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

// session is a model whose input and output names are read from the file,
// so exports with different node names load without configuration.
type session struct {
	ort       *ort.DynamicAdvancedSession
	modelPath string
	inputs    []ort.InputOutputInfo
	outputs   []ort.InputOutputInfo
}

func newSession(modelPath string) (*session, error) {
	if !isInitialized() {
		return nil, ErrNotInitialized
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", modelPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", modelPath)
	}

	s, err := ort.NewDynamicAdvancedSession(modelPath, names(inputs), names(outputs), nil)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return &session{
		ort:       s,
		modelPath: modelPath,
		inputs:    inputs,
		outputs:   outputs,
	}, nil
}

func names(infos []ort.InputOutputInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

// inputSide returns the fixed spatial size of the first NCHW input, or
// fallback when the model leaves it dynamic.
func (s *session) inputSide(fallback int) int {
	dims := s.inputs[0].Dimensions
	if len(dims) == 4 && dims[2] > 0 && dims[2] == dims[3] {
		return int(dims[2])
	}
	return fallback
}

// run executes the model and returns every output as a float32 tensor. The
// caller destroys the returned tensors.
func (s *session) run(inputs []ort.Value) ([]*ort.Tensor[float32], error) {
	outputs := make([]ort.Value, len(s.outputs))
	if err := s.ort.Run(inputs, outputs); err != nil {
		destroyValues(outputs)
		return nil, fmt.Errorf("run %s: %w", s.modelPath, err)
	}

	tensors := make([]*ort.Tensor[float32], len(outputs))
	for i, v := range outputs {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			destroyValues(outputs)
			return nil, fmt.Errorf("%s: output %q is not a float32 tensor", s.modelPath, s.outputs[i].Name)
		}
		tensors[i] = t
	}
	return tensors, nil
}

func (s *session) destroy() error {
	if s == nil || s.ort == nil {
		return nil
	}
	return s.ort.Destroy()
}

func destroyValues(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			_ = v.Destroy()
		}
	}
}

func destroyTensors(tensors []*ort.Tensor[float32]) {
	for _, t := range tensors {
		if t != nil {
			_ = t.Destroy()
		}
	}
}
