package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// SwapJobReader is implemented by repository.SwapJobRepository.
type SwapJobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SwapJob, error)
	List(ctx context.Context, limit, offset int) ([]domain.SwapJob, error)
}

type SwapJobHandler struct {
	jobs SwapJobReader
}

func NewSwapJobHandler(jobs SwapJobReader) *SwapJobHandler {
	return &SwapJobHandler{jobs: jobs}
}

type SwapJobListResponse struct {
	Jobs   []domain.SwapJob `json:"jobs"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// List GET /swaps?limit=&offset=
func (h *SwapJobHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 100 || offset < 0 {
		return domain.ErrBadRequest.WithMessage("limit must be 1-100 and offset non-negative")
	}

	jobs, err := h.jobs.List(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(SwapJobListResponse{Jobs: jobs, Limit: limit, Offset: offset})
}

// Get GET /swaps/:id
func (h *SwapJobHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrSwapNotFound
	}

	job, err := h.jobs.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(job)
}
