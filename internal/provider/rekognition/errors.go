package rekognition

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

const (
	errCodeAccessDenied       = "AccessDeniedException"
	errCodeInvalidImageFormat = "InvalidImageFormatException"
	errCodeImageTooLarge      = "ImageTooLargeException"
	errCodeInvalidParameter   = "InvalidParameterException"
	errCodeThrottling         = "ThrottlingException"
	errCodeThroughput         = "ProvisionedThroughputExceededException"
)

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrThrottled indicates that Rekognition rejected the call for rate reasons
	ErrThrottled = errors.New("rekognition request throttled")

	// ErrImageTooLarge indicates the encoded image exceeds the DetectFaces limit
	ErrImageTooLarge = errors.New("image exceeds rekognition size limit")
)

// parseError maps DetectFaces failures. Image problems are the caller's
// fault and surface as domain.ErrInvalidImage; everything else stays wrapped.
func parseError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("detect faces: %w", err)
	}

	switch apiErr.ErrorCode() {
	case errCodeInvalidImageFormat, errCodeImageTooLarge, errCodeInvalidParameter:
		return domain.ErrInvalidImage.WithError(err)
	case errCodeAccessDenied:
		return fmt.Errorf("detect faces: %w", ErrInvalidCredentials)
	case errCodeThrottling, errCodeThroughput:
		return fmt.Errorf("detect faces: %w: %s", ErrThrottled, apiErr.ErrorMessage())
	}
	return fmt.Errorf("detect faces: %w", err)
}
