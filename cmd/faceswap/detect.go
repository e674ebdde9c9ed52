package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Print the faces found in an image as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		faces, err := swapSvc.Detect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if faces == nil {
			faces = []domain.FaceRecord{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Faces []domain.FaceRecord `json:"faces"`
			Count int                 `json:"count"`
		}{faces, len(faces)})
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
