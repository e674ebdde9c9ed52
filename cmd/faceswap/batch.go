package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/media"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/service"
)

var (
	batchOut     string
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch <source> <target-dir>",
	Short: "Put the face from source onto every image in a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := collectImages(args[1])
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("no .png, .jpg or .jpeg files in %s", args[1])
		}
		if err := os.MkdirAll(batchOut, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		bar := progressbar.NewOptions(len(targets),
			progressbar.OptionSetDescription("Swapping"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		results := runBatch(cmd.Context(), swapSvc, args[0], targets, batchOut, batchWorkers, func() {
			_ = bar.Add(1)
		})
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %s\n", r.Target, service.ErrorCode(r.Err))
			}
		}
		fmt.Fprintf(os.Stderr, "%d swapped, %d failed\n", len(results)-failed, failed)
		if failed == len(results) {
			return fmt.Errorf("every swap failed")
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "swapped", "Output directory")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 2, "Parallel swaps")
	rootCmd.AddCommand(batchCmd)
}

type swapper interface {
	Swap(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error)
}

type batchResult struct {
	Target string
	Output string
	Err    error
}

// collectImages lists the accepted image files directly under dir, sorted.
func collectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && media.AllowedFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// runBatch swaps source onto each target with a fixed pool of workers.
// Results keep the order of targets.
func runBatch(ctx context.Context, svc swapper, source string, targets []string, outDir string, workers int, onDone func()) []batchResult {
	if workers < 1 {
		workers = 1
	}

	results := make([]batchResult, len(targets))
	tasks := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				results[i] = swapOne(ctx, svc, source, targets[i], outDir)
				if onDone != nil {
					onDone()
				}
			}
		}()
	}

	for i := range targets {
		if ctx.Err() != nil {
			results[i] = batchResult{Target: targets[i], Err: ctx.Err()}
			continue
		}
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	return results
}

// outputName maps a target to <stem>_<ext>.jpg. Distinct target names
// give distinct output names.
func outputName(target string) string {
	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		return stem + ".jpg"
	}
	return stem + "_" + strings.TrimPrefix(ext, ".") + ".jpg"
}

func swapOne(ctx context.Context, svc swapper, source, target, outDir string) batchResult {
	r := batchResult{Target: target, Output: filepath.Join(outDir, outputName(target))}

	result, err := svc.Swap(ctx, domain.SwapRequest{SourcePath: source, TargetPath: target})
	if err != nil {
		r.Err = err
		return r
	}
	if err := os.WriteFile(r.Output, result.Image, 0o644); err != nil {
		r.Err = fmt.Errorf("write %s: %w", r.Output, err)
	}
	return r
}
