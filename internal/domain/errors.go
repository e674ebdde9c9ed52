package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so copies made by
// WithError and WithMessage still match the catalogue entry.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    msg,
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal server error",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrMissingImage = &AppError{
		Code:       "MISSING_IMAGE",
		Message:    "Both source and target images are required",
		StatusCode: 400,
	}

	ErrInvalidFileType = &AppError{
		Code:       "INVALID_FILE_TYPE",
		Message:    "Invalid file type. Only .png, .jpg, .jpeg are allowed",
		StatusCode: 400,
	}

	ErrInvalidURL = &AppError{
		Code:       "INVALID_URL",
		Message:    "Image URL must be an absolute http or https URL",
		StatusCode: 400,
	}

	ErrDownloadFailed = &AppError{
		Code:       "DOWNLOAD_FAILED",
		Message:    "Failed to download image",
		StatusCode: 400,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 400,
	}

	ErrNoFaceInSource = &AppError{
		Code:       "NO_FACE_IN_SOURCE",
		Message:    "No face detected in source image",
		StatusCode: 400,
	}

	ErrNoFaceInTarget = &AppError{
		Code:       "NO_FACE_IN_TARGET",
		Message:    "No face detected in target image",
		StatusCode: 400,
	}

	ErrPayloadTooLarge = &AppError{
		Code:       "PAYLOAD_TOO_LARGE",
		Message:    "Request body too large",
		StatusCode: 413,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrSwapNotFound = &AppError{
		Code:       "SWAP_NOT_FOUND",
		Message:    "Swap job not found",
		StatusCode: 404,
	}

	ErrSwapFailed = &AppError{
		Code:       "SWAP_FAILED",
		Message:    "Failed to swap faces",
		StatusCode: 500,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service not ready",
		StatusCode: 503,
	}
)

// ErrNoFace returns the no-face error for the given side.
func ErrNoFace(side Side) *AppError {
	if side == SideTarget {
		return ErrNoFaceInTarget
	}
	return ErrNoFaceInSource
}
