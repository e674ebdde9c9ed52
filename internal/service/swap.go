package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/audit"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/imaging"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/metrics"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider"
)

// JobRecorder persists one row per swap attempt.
type JobRecorder interface {
	Create(ctx context.Context, job *domain.SwapJob) error
}

type Options struct {
	MaxTargetWidth int
	JPEGQuality    int
	MaxConcurrent  int
	MaxImagePixels int
}

func DefaultOptions() Options {
	return Options{
		MaxTargetWidth: 640,
		JPEGQuality:    imaging.DefaultJPEGQuality,
		MaxConcurrent:  2,
		MaxImagePixels: imaging.DefaultMaxPixels,
	}
}

type SwapService struct {
	analyzer provider.FaceAnalyzer
	swapper  provider.FaceSwapper
	jobs     JobRecorder
	audit    audit.Logger
	metrics  *metrics.Metrics
	sem      *semaphore.Weighted
	opts     Options
	logger   *slog.Logger
}

func NewSwapService(analyzer provider.FaceAnalyzer, swapper provider.FaceSwapper, opts Options, logger *slog.Logger) *SwapService {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SwapService{
		analyzer: analyzer,
		swapper:  swapper,
		audit:    &audit.NoOpLogger{},
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		opts:     opts,
		logger:   logger.With("component", "swap_service"),
	}
}

func (s *SwapService) WithJobRecorder(jobs JobRecorder) *SwapService {
	s.jobs = jobs
	return s
}

func (s *SwapService) WithAudit(logger audit.Logger) *SwapService {
	if logger != nil {
		s.audit = logger
	}
	return s
}

func (s *SwapService) WithMetrics(m *metrics.Metrics) *SwapService {
	s.metrics = m
	return s
}

// Provider names the analyzer and swapper pair, e.g. "onnx/onnx".
func (s *SwapService) Provider() string {
	return s.analyzer.Name() + "/" + s.swapper.Name()
}

// Swap puts the first source face onto the first target face and returns
// the JPEG. Every attempt is recorded, successful or not.
func (s *SwapService) Swap(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error) {
	start := time.Now()
	id := uuid.New()

	if s.metrics != nil {
		s.metrics.SwapStarted()
		defer s.metrics.SwapFinished()
	}

	result, err := s.swap(ctx, req)
	latency := time.Since(start)
	if result != nil {
		result.ID = id
		result.Latency = latency
	}

	s.record(ctx, id, req, result, err, latency)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SwapService) swap(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error) {
	stage := time.Now()
	source, err := s.decode(req.SourcePath, domain.SideSource)
	if err != nil {
		return nil, err
	}
	target, err := s.decode(req.TargetPath, domain.SideTarget)
	if err != nil {
		return nil, err
	}
	s.observe(metrics.StageDecode, stage)

	stage = time.Now()
	size := imaging.TargetSize(source.Bounds().Dx(), target.Bounds().Size(), s.opts.MaxTargetWidth)
	resized := imaging.Resize(target, size)
	s.observe(metrics.StageResize, stage)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	stage = time.Now()
	sourceFaces, targetFaces, err := s.analyzePair(ctx, source, resized)
	result := &domain.SwapResult{
		SourceFaces: len(sourceFaces),
		TargetFaces: len(targetFaces),
	}
	if err != nil {
		return result, err
	}
	s.observe(metrics.StageAnalyze, stage)

	stage = time.Now()
	swapped, err := s.swapper.Swap(ctx, resized, targetFaces[0], sourceFaces[0], true)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, domain.ErrSwapFailed.WithError(err)
	}
	s.observe(metrics.StageSwap, stage)

	stage = time.Now()
	out, err := imaging.EncodeJPEG(swapped, s.opts.JPEGQuality)
	if err != nil {
		return result, domain.ErrInternal.WithError(err)
	}
	s.observe(metrics.StageEncode, stage)

	b := swapped.Bounds()
	result.Image = out
	result.Width = b.Dx()
	result.Height = b.Dy()
	return result, nil
}

// analyzePair runs both analyses concurrently. Errors are reported source
// first regardless of which goroutine finished first. The face lists are
// returned alongside an error so the job row keeps the counts.
func (s *SwapService) analyzePair(ctx context.Context, source, target image.Image) ([]domain.FaceRecord, []domain.FaceRecord, error) {
	var (
		g                        errgroup.Group
		sourceFaces, targetFaces []domain.FaceRecord
		sourceErr, targetErr     error
	)
	g.Go(func() error {
		sourceFaces, sourceErr = s.analyzer.Analyze(ctx, source)
		return nil
	})
	g.Go(func() error {
		targetFaces, targetErr = s.analyzer.Analyze(ctx, target)
		return nil
	})
	_ = g.Wait()

	if sourceErr != nil {
		return nil, targetFaces, fmt.Errorf("analyze source: %w", sourceErr)
	}
	s.recordFaces(domain.SideSource, len(sourceFaces))
	if len(sourceFaces) == 0 {
		return sourceFaces, targetFaces, domain.ErrNoFace(domain.SideSource)
	}

	if targetErr != nil {
		return sourceFaces, nil, fmt.Errorf("analyze target: %w", targetErr)
	}
	s.recordFaces(domain.SideTarget, len(targetFaces))
	if len(targetFaces) == 0 {
		return sourceFaces, targetFaces, domain.ErrNoFace(domain.SideTarget)
	}

	return sourceFaces, targetFaces, nil
}

// Detect returns every face in the image at path. No face is not an error.
func (s *SwapService) Detect(ctx context.Context, path string) ([]domain.FaceRecord, error) {
	img, err := s.decode(path, "")
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	faces, err := s.analyzer.Analyze(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}

	_ = s.audit.Log(ctx, audit.Event{
		EventType: audit.EventFacesDetected,
		Provider:  s.analyzer.Name(),
		Success:   true,
		Metadata:  map[string]string{"faces": strconv.Itoa(len(faces))},
	})
	return faces, nil
}

func (s *SwapService) record(ctx context.Context, id uuid.UUID, req domain.SwapRequest, result *domain.SwapResult, swapErr error, latency time.Duration) {
	code := ErrorCode(swapErr)
	status := domain.SwapStatusCompleted
	if swapErr != nil {
		status = domain.SwapStatusFailed
	}

	if s.metrics != nil {
		s.metrics.RecordSwap(string(status), code, latency)
	}

	job := &domain.SwapJob{
		ID:        id,
		RequestID: req.RequestID,
		Status:    status,
		ErrorCode: code,
		Provider:  s.Provider(),
		LatencyMs: latency.Milliseconds(),
		ClientIP:  req.ClientIP,
	}
	if result != nil {
		job.SourceFaces = result.SourceFaces
		job.TargetFaces = result.TargetFaces
		job.Width = result.Width
		job.Height = result.Height
	}

	// recorded even when the request was cancelled
	ctx = context.WithoutCancel(ctx)

	if s.jobs != nil {
		if err := s.jobs.Create(ctx, job); err != nil {
			s.logger.Error("failed to record swap job",
				slog.String("swap_id", id.String()),
				slog.Any("error", err),
			)
		}
	}

	event := audit.Event{
		EventType: audit.EventSwapCompleted,
		RequestID: req.RequestID,
		SwapID:    id.String(),
		Provider:  job.Provider,
		Success:   swapErr == nil,
		ErrorCode: code,
		IPAddress: req.ClientIP,
		Metadata: map[string]string{
			"source_faces": strconv.Itoa(job.SourceFaces),
			"target_faces": strconv.Itoa(job.TargetFaces),
			"latency_ms":   strconv.FormatInt(job.LatencyMs, 10),
		},
	}
	if swapErr != nil {
		event.EventType = audit.EventSwapFailed
	}
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("failed to write audit event", slog.Any("error", err))
	}
}

func (s *SwapService) observe(stage string, since time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveStage(stage, time.Since(since))
	}
}

func (s *SwapService) recordFaces(side domain.Side, n int) {
	if s.metrics != nil {
		s.metrics.RecordFaces(string(side), n)
	}
}

// ErrorCode returns the catalogue code for err, "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELED"
	}
	return domain.ErrInternal.Code
}

func (s *SwapService) decode(path string, side domain.Side) (image.Image, error) {
	img, err := imaging.DecodeFile(path, s.opts.MaxImagePixels)
	if err != nil {
		appErr := domain.ErrInvalidImage.WithError(err)
		switch {
		case errors.Is(err, imaging.ErrTooManyPixels) && side != "":
			appErr = appErr.WithMessage(fmt.Sprintf("The %s image dimensions are too large", side))
		case errors.Is(err, imaging.ErrTooManyPixels):
			appErr = appErr.WithMessage("Image dimensions are too large")
		case side != "":
			appErr = appErr.WithMessage(fmt.Sprintf("Invalid %s image format or corrupted file", side))
		}
		return nil, appErr
	}
	return img, nil
}
