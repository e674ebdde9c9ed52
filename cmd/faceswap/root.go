package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/config"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/face"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/service"
)

// Version is the CLI version.
const Version = "0.1.0"

var (
	faceProvider string
	swapProvider string
	verbose      bool

	cfg       *config.Config
	logger    *slog.Logger
	providers *face.Providers
	swapSvc   *service.SwapService
)

var rootCmd = &cobra.Command{
	Use:           "faceswap",
	Short:         "Swap faces between local images",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if faceProvider != "" {
			cfg.FaceProvider = faceProvider
		}
		if swapProvider != "" {
			cfg.SwapProvider = swapProvider
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		providers, err = face.NewProviders(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to load face providers: %w", err)
		}

		swapSvc = service.NewSwapService(providers.Analyzer, providers.Swapper, service.Options{
			MaxTargetWidth: cfg.MaxTargetWidth,
			JPEGQuality:    cfg.JPEGQuality,
			MaxConcurrent:  cfg.MaxConcurrentSwaps,
			MaxImagePixels: cfg.MaxImagePixels,
		}, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if providers != nil {
			if err := providers.Close(); err != nil {
				logger.Error("failed to close providers", slog.Any("error", err))
			}
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&faceProvider, "face-provider", "", "Face analyzer: onnx, rekognition or mock (default: FACE_PROVIDER)")
	rootCmd.PersistentFlags().StringVar(&swapProvider, "swap-provider", "", "Face swapper: onnx or mock (default: SWAP_PROVIDER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline details to stderr")
}
