package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

var swapOut string

var swapCmd = &cobra.Command{
	Use:   "swap <source> <target>",
	Short: "Put the face from source onto target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := swapSvc.Swap(cmd.Context(), domain.SwapRequest{
			SourcePath: args[0],
			TargetPath: args[1],
		})
		if err != nil {
			return err
		}

		if err := os.WriteFile(swapOut, result.Image, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", swapOut, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%dx%d, %s)\n", swapOut, result.Width, result.Height, result.Latency.Round(time.Millisecond))
		return nil
	},
}

func init() {
	swapCmd.Flags().StringVarP(&swapOut, "out", "o", "swapped.jpg", "Output JPEG path")
	rootCmd.AddCommand(swapCmd)
}
