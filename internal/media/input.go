// Package media turns request inputs (multipart uploads or remote URLs)
// into image files inside a per-request scratch session.
package media

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// AllowedFile reports whether filename carries an accepted image extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Input is one side of a request. File wins over URL when both are set.
type Input struct {
	Side domain.Side
	File *multipart.FileHeader
	URL  string
}

// Validate checks presence and extension without touching the disk.
func (in Input) Validate() error {
	if in.File != nil {
		if !AllowedFile(in.File.Filename) {
			return domain.ErrInvalidFileType
		}
		return nil
	}
	if strings.TrimSpace(in.URL) == "" {
		return domain.ErrMissingImage.WithMessage(
			fmt.Sprintf("Both source and target images are required (missing %s image)", in.Side))
	}
	return nil
}

func (in Input) fromURL() bool {
	return in.File == nil
}
