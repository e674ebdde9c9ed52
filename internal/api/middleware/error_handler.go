package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := toAppError(err)

		if appErr.StatusCode >= 500 {
			logger.Error("request failed",
				slog.String("code", appErr.Code),
				slog.String("path", c.Path()),
				slog.Any("request_id", c.Locals(LocalRequestID)),
				slog.Any("error", err),
			)
		}

		return c.Status(appErr.StatusCode).JSON(ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		})
	}
}

// toAppError maps fiber errors onto the catalogue. Anything unknown becomes
// INTERNAL_ERROR with a generic message.
func toAppError(err error) *domain.AppError {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case fiber.StatusRequestEntityTooLarge:
			return domain.ErrPayloadTooLarge
		case fiber.StatusNotFound:
			return domain.ErrNotFound
		case fiber.StatusTooManyRequests:
			return domain.ErrRateLimitExceeded
		}
		return &domain.AppError{
			Code:       "HTTP_ERROR",
			Message:    fiberErr.Message,
			StatusCode: fiberErr.Code,
		}
	}

	return domain.ErrInternal.WithError(err)
}
