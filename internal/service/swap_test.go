package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/audit"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/metrics"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, img image.Image) ([]domain.FaceRecord, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FaceRecord), args.Error(1)
}

func (m *MockAnalyzer) Name() string { return "mock" }
func (m *MockAnalyzer) Close() error { return nil }

type MockSwapper struct {
	mock.Mock
}

func (m *MockSwapper) Swap(ctx context.Context, target image.Image, targetFace, sourceFace domain.FaceRecord, pasteBack bool) (image.Image, error) {
	args := m.Called(ctx, target, targetFace, sourceFace, pasteBack)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

func (m *MockSwapper) Name() string { return "mock" }
func (m *MockSwapper) Close() error { return nil }

type MockJobRecorder struct {
	mock.Mock
}

func (m *MockJobRecorder) Create(ctx context.Context, job *domain.SwapJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// Source images are 200x200; a 400x300 target is resized to 200x150, so the
// two Analyze calls can be told apart by height.
var (
	isSource = mock.MatchedBy(func(img image.Image) bool { return img.Bounds().Dy() == 200 })
	isTarget = mock.MatchedBy(func(img image.Image) bool { return img.Bounds().Dy() == 150 })
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testRequest(t *testing.T) domain.SwapRequest {
	t.Helper()
	dir := t.TempDir()
	return domain.SwapRequest{
		SourcePath: writePNG(t, dir, "source.png", 200, 200),
		TargetPath: writePNG(t, dir, "target.png", 400, 300),
		RequestID:  "req-123",
		ClientIP:   "10.1.2.3",
	}
}

func face(score float32) domain.FaceRecord {
	return domain.FaceRecord{
		BoundingBox: domain.BoundingBox{X1: 10, Y1: 10, X2: 60, Y2: 60},
		Score:       score,
		Embedding:   make([]float32, domain.EmbeddingSize),
	}
}

func TestSwapService_Swap(t *testing.T) {
	swapped := image.NewRGBA(image.Rect(0, 0, 200, 150))

	tests := []struct {
		name       string
		setupMocks func(*MockAnalyzer, *MockSwapper)
		wantErr    error
		wantCode   string
	}{
		{
			name: "successful swap",
			setupMocks: func(a *MockAnalyzer, s *MockSwapper) {
				a.On("Analyze", mock.Anything, isSource).Return([]domain.FaceRecord{face(0.9)}, nil)
				a.On("Analyze", mock.Anything, isTarget).Return([]domain.FaceRecord{face(0.8), face(0.7)}, nil)
				s.On("Swap", mock.Anything, mock.Anything, face(0.8), face(0.9), true).Return(swapped, nil)
			},
		},
		{
			name: "no face in source",
			setupMocks: func(a *MockAnalyzer, s *MockSwapper) {
				a.On("Analyze", mock.Anything, isSource).Return([]domain.FaceRecord{}, nil)
				a.On("Analyze", mock.Anything, isTarget).Return([]domain.FaceRecord{face(0.8)}, nil)
			},
			wantErr:  domain.ErrNoFaceInSource,
			wantCode: "NO_FACE_IN_SOURCE",
		},
		{
			name: "no face in target",
			setupMocks: func(a *MockAnalyzer, s *MockSwapper) {
				a.On("Analyze", mock.Anything, isSource).Return([]domain.FaceRecord{face(0.9)}, nil)
				a.On("Analyze", mock.Anything, isTarget).Return([]domain.FaceRecord{}, nil)
			},
			wantErr:  domain.ErrNoFaceInTarget,
			wantCode: "NO_FACE_IN_TARGET",
		},
		{
			name: "source reported before target",
			setupMocks: func(a *MockAnalyzer, s *MockSwapper) {
				a.On("Analyze", mock.Anything, isSource).Return([]domain.FaceRecord{}, nil)
				a.On("Analyze", mock.Anything, isTarget).Return(nil, errors.New("detector crashed"))
			},
			wantErr:  domain.ErrNoFaceInSource,
			wantCode: "NO_FACE_IN_SOURCE",
		},
		{
			name: "analyzer failure is internal",
			setupMocks: func(a *MockAnalyzer, s *MockSwapper) {
				a.On("Analyze", mock.Anything, isSource).Return(nil, errors.New("session closed"))
				a.On("Analyze", mock.Anything, isTarget).Return([]domain.FaceRecord{face(0.8)}, nil)
			},
			wantErr:  errors.New("analyze source: session closed"),
			wantCode: "INTERNAL_ERROR",
		},
		{
			name: "swapper failure",
			setupMocks: func(a *MockAnalyzer, s *MockSwapper) {
				a.On("Analyze", mock.Anything, isSource).Return([]domain.FaceRecord{face(0.9)}, nil)
				a.On("Analyze", mock.Anything, isTarget).Return([]domain.FaceRecord{face(0.8)}, nil)
				s.On("Swap", mock.Anything, mock.Anything, mock.Anything, mock.Anything, true).Return(nil, errors.New("bad latent"))
			},
			wantErr:  domain.ErrSwapFailed,
			wantCode: "SWAP_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := new(MockAnalyzer)
			swapper := new(MockSwapper)
			jobs := new(MockJobRecorder)
			tt.setupMocks(analyzer, swapper)

			var recorded *domain.SwapJob
			jobs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				recorded = args.Get(1).(*domain.SwapJob)
			}).Return(nil)

			svc := NewSwapService(analyzer, swapper, DefaultOptions(), nil).
				WithJobRecorder(jobs).
				WithMetrics(metrics.New())

			result, err := svc.Swap(context.Background(), testRequest(t))

			require.NotNil(t, recorded)
			assert.Equal(t, "req-123", recorded.RequestID)
			assert.Equal(t, "10.1.2.3", recorded.ClientIP)
			assert.Equal(t, "mock/mock", recorded.Provider)
			assert.Equal(t, tt.wantCode, recorded.ErrorCode)

			if tt.wantErr != nil {
				require.Error(t, err)
				var appErr *domain.AppError
				if errors.As(tt.wantErr, &appErr) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.EqualError(t, err, tt.wantErr.Error())
				}
				assert.Equal(t, domain.SwapStatusFailed, recorded.Status)
			} else {
				require.NoError(t, err)
				require.NotNil(t, result)
				assert.Equal(t, 200, result.Width)
				assert.Equal(t, 150, result.Height)
				assert.Equal(t, 1, result.SourceFaces)
				assert.Equal(t, 2, result.TargetFaces)
				assert.Equal(t, recorded.ID, result.ID)

				decoded, err := jpeg.Decode(bytes.NewReader(result.Image))
				require.NoError(t, err)
				assert.Equal(t, image.Pt(200, 150), decoded.Bounds().Size())
				assert.Equal(t, domain.SwapStatusCompleted, recorded.Status)
			}

			analyzer.AssertExpectations(t)
			swapper.AssertExpectations(t)
		})
	}
}

func TestSwapService_Swap_TargetResizedBeforeAnalysis(t *testing.T) {
	analyzer := new(MockAnalyzer)
	swapper := new(MockSwapper)

	analyzer.On("Analyze", mock.Anything, isSource).Return([]domain.FaceRecord{face(0.9)}, nil)
	analyzer.On("Analyze", mock.Anything, isTarget).Return([]domain.FaceRecord{face(0.8)}, nil)
	swapper.On("Swap", mock.Anything, mock.MatchedBy(func(img image.Image) bool {
		return img.Bounds().Size() == image.Pt(200, 150)
	}), mock.Anything, mock.Anything, true).Return(image.NewRGBA(image.Rect(0, 0, 200, 150)), nil)

	_, err := NewSwapService(analyzer, swapper, DefaultOptions(), nil).Swap(context.Background(), testRequest(t))
	require.NoError(t, err)
	swapper.AssertExpectations(t)
}

func TestSwapService_Swap_InvalidImage(t *testing.T) {
	analyzer := new(MockAnalyzer)
	swapper := new(MockSwapper)

	req := testRequest(t)
	require.NoError(t, os.WriteFile(req.SourcePath, []byte("not a png"), 0o644))

	_, err := NewSwapService(analyzer, swapper, DefaultOptions(), nil).Swap(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrInvalidImage)
	assert.Contains(t, err.Error(), "source")
	analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestSwapService_PixelLimit(t *testing.T) {
	tests := []struct {
		name      string
		maxPixels int
		wantMsg   string
	}{
		{name: "source over the limit", maxPixels: 100 * 100, wantMsg: "The source image dimensions are too large"},
		{name: "target over the limit", maxPixels: 200 * 200, wantMsg: "The target image dimensions are too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := new(MockAnalyzer)
			opts := DefaultOptions()
			opts.MaxImagePixels = tt.maxPixels

			_, err := NewSwapService(analyzer, new(MockSwapper), opts, nil).Swap(context.Background(), testRequest(t))

			require.ErrorIs(t, err, domain.ErrInvalidImage)
			var appErr *domain.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantMsg, appErr.Message)
			analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
		})
	}

	t.Run("detect", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxImagePixels = 10
		path := writePNG(t, t.TempDir(), "group.png", 20, 20)

		_, err := NewSwapService(new(MockAnalyzer), new(MockSwapper), opts, nil).Detect(context.Background(), path)

		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, domain.ErrInvalidImage.Code, appErr.Code)
		assert.Equal(t, "Image dimensions are too large", appErr.Message)
	})
}

func TestSwapService_Swap_JobRecorderFailureIgnored(t *testing.T) {
	analyzer := new(MockAnalyzer)
	swapper := new(MockSwapper)
	jobs := new(MockJobRecorder)

	analyzer.On("Analyze", mock.Anything, mock.Anything).Return([]domain.FaceRecord{face(0.9)}, nil)
	swapper.On("Swap", mock.Anything, mock.Anything, mock.Anything, mock.Anything, true).
		Return(image.NewRGBA(image.Rect(0, 0, 200, 150)), nil)
	jobs.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	result, err := NewSwapService(analyzer, swapper, DefaultOptions(), nil).
		WithJobRecorder(jobs).
		Swap(context.Background(), testRequest(t))

	require.NoError(t, err)
	assert.NotEmpty(t, result.Image)
	jobs.AssertExpectations(t)
}

func TestSwapService_Swap_WaitsForSlot(t *testing.T) {
	analyzer := new(MockAnalyzer)
	swapper := new(MockSwapper)

	opts := DefaultOptions()
	opts.MaxConcurrent = 1
	svc := NewSwapService(analyzer, swapper, opts, nil)

	require.NoError(t, svc.sem.Acquire(context.Background(), 1))
	defer svc.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Swap(ctx, testRequest(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "CANCELED", ErrorCode(err))
	analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

type recordingAudit struct {
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestSwapService_Swap_AuditEvents(t *testing.T) {
	analyzer := new(MockAnalyzer)
	swapper := new(MockSwapper)
	analyzer.On("Analyze", mock.Anything, isSource).Return([]domain.FaceRecord{face(0.9)}, nil)
	analyzer.On("Analyze", mock.Anything, isTarget).Return([]domain.FaceRecord{}, nil)

	events := &recordingAudit{}
	_, err := NewSwapService(analyzer, swapper, DefaultOptions(), nil).
		WithAudit(events).
		Swap(context.Background(), testRequest(t))
	require.Error(t, err)

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.Equal(t, audit.EventSwapFailed, e.EventType)
	assert.False(t, e.Success)
	assert.Equal(t, "NO_FACE_IN_TARGET", e.ErrorCode)
	assert.Equal(t, "1", e.Metadata["source_faces"])
}

func TestSwapService_Detect(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "group.png", 200, 200)

	t.Run("returns faces", func(t *testing.T) {
		analyzer := new(MockAnalyzer)
		analyzer.On("Analyze", mock.Anything, mock.Anything).Return([]domain.FaceRecord{face(0.9), face(0.6)}, nil)

		events := &recordingAudit{}
		faces, err := NewSwapService(analyzer, new(MockSwapper), DefaultOptions(), nil).
			WithAudit(events).
			Detect(context.Background(), path)

		require.NoError(t, err)
		assert.Len(t, faces, 2)
		require.Len(t, events.events, 1)
		assert.Equal(t, audit.EventFacesDetected, events.events[0].EventType)
		assert.Equal(t, "2", events.events[0].Metadata["faces"])
	})

	t.Run("no face is not an error", func(t *testing.T) {
		analyzer := new(MockAnalyzer)
		analyzer.On("Analyze", mock.Anything, mock.Anything).Return([]domain.FaceRecord{}, nil)

		faces, err := NewSwapService(analyzer, new(MockSwapper), DefaultOptions(), nil).Detect(context.Background(), path)
		require.NoError(t, err)
		assert.Empty(t, faces)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewSwapService(new(MockAnalyzer), new(MockSwapper), DefaultOptions(), nil).
			Detect(context.Background(), filepath.Join(dir, "missing.png"))
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
	})
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"catalogue", domain.ErrNoFaceInTarget, "NO_FACE_IN_TARGET"},
		{"wrapped catalogue", errors.Join(errors.New("ctx"), domain.ErrSwapFailed.WithError(errors.New("x"))), "SWAP_FAILED"},
		{"deadline", context.DeadlineExceeded, "CANCELED"},
		{"plain", errors.New("boom"), "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
