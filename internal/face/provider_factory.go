package face

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/config"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/facegeom"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider/onnx"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider/rekognition"
)

// Providers holds the process-wide model adapters. They are built once at
// startup and closed on shutdown.
type Providers struct {
	Analyzer provider.FaceAnalyzer
	Swapper  provider.FaceSwapper

	closers []func() error
}

// NewProviders builds the analyzer and swapper selected by configuration.
//
// Environment variables:
//   - FACE_PROVIDER: "onnx", "rekognition" or "mock" (default: "onnx")
//   - SWAP_PROVIDER: "onnx" or "mock" (default: "onnx")
//   - ORT_LIBRARY_PATH, MODELS_DIR and the *_MODEL names for local models
//   - AWS_REGION plus the AWS SDK credential chain for Rekognition
func NewProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Providers, err error) {
	p := &Providers{}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	if cfg.NeedsONNX() {
		if err := onnx.Initialize(cfg.ORTLibraryPath); err != nil {
			return nil, err
		}
		p.closers = append(p.closers, onnx.Shutdown)
	}

	if p.Analyzer, err = p.newAnalyzer(ctx, cfg, logger); err != nil {
		return nil, fmt.Errorf("create %s analyzer: %w", cfg.FaceProvider, err)
	}
	if p.Swapper, err = p.newSwapper(cfg); err != nil {
		return nil, fmt.Errorf("create %s swapper: %w", cfg.SwapProvider, err)
	}

	logger.Info("face providers ready",
		"analyzer", p.Analyzer.Name(),
		"swapper", p.Swapper.Name(),
	)
	return p, nil
}

func (p *Providers) newAnalyzer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.FaceAnalyzer, error) {
	switch cfg.FaceProvider {
	case config.ProviderMock:
		return mock.NewAnalyzer(), nil

	case config.ProviderONNX:
		recognizer, err := p.newRecognizer(cfg)
		if err != nil {
			return nil, err
		}
		detector, err := onnx.NewDetector(cfg.ModelPath(cfg.DetectorModel), cfg.DetectSize, cfg.DetectThreshold)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, detector.Close)
		return onnx.NewAnalyzer(detector, recognizer), nil

	case config.ProviderRekognition:
		recognizer, err := p.newRecognizer(cfg)
		if err != nil {
			return nil, err
		}
		rekogConfig := rekognition.DefaultConfig()
		rekogConfig.Region = cfg.AWSRegion

		client, err := rekognition.NewClient(ctx, rekogConfig)
		if err != nil {
			return nil, err
		}
		return rekognition.NewAnalyzer(client, recognizer, rekogConfig, logger), nil
	}

	return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
		cfg.FaceProvider, config.ProviderONNX, config.ProviderRekognition, config.ProviderMock)
}

func (p *Providers) newRecognizer(cfg *config.Config) (*onnx.Recognizer, error) {
	recognizer, err := onnx.NewRecognizer(cfg.ModelPath(cfg.RecognizerModel))
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, recognizer.Close)
	return recognizer, nil
}

func (p *Providers) newSwapper(cfg *config.Config) (provider.FaceSwapper, error) {
	switch cfg.SwapProvider {
	case config.ProviderMock:
		return mock.NewSwapper(), nil

	case config.ProviderONNX:
		emap, err := facegeom.LoadEmap(cfg.ModelPath(cfg.EmapPath))
		if err != nil {
			return nil, err
		}
		swapper, err := onnx.NewSwapper(cfg.ModelPath(cfg.SwapperModel), emap)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, swapper.Close)
		return swapper, nil
	}

	return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s)",
		cfg.SwapProvider, config.ProviderONNX, config.ProviderMock)
}

// Close releases model sessions in reverse creation order, the runtime last.
func (p *Providers) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}
