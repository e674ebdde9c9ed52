package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

// NewHealthHandler creates the health handler. db may be nil when no
// database is configured.
func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

type HealthResponse struct {
	Message string `json:"message"`
}

type ReadyResponse struct {
	Status string `json:"status"`
}

// Health GET /health - liveness, independent of models and database
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Message: "API is running correctly"})
}

// Ready GET /ready - 503 while the configured database is unreachable
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", slog.Any("error", err))
			return domain.ErrServiceUnavailable.WithError(err)
		}
	}
	return c.JSON(ReadyResponse{Status: "ready"})
}
