package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/media"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/metrics"
)

// SwapService is implemented by service.SwapService.
type SwapService interface {
	Swap(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error)
	Detect(ctx context.Context, path string) ([]domain.FaceRecord, error)
}

type SwapHandler struct {
	service   SwapService
	scratch   *media.Scratch
	fetcher   *media.Fetcher
	validator *validator.Validate
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewSwapHandler(service SwapService, scratch *media.Scratch, fetcher *media.Fetcher, validate *validator.Validate, m *metrics.Metrics, logger *slog.Logger) *SwapHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SwapHandler{
		service:   service,
		scratch:   scratch,
		fetcher:   fetcher,
		validator: validate,
		metrics:   m,
		logger:    logger,
	}
}

// swapForm holds the URL fields. A URL is only validated when no file was
// uploaded for its side.
type swapForm struct {
	SourceURL string `validate:"omitempty,http_url"`
	TargetURL string `validate:"omitempty,http_url"`
}

type detectForm struct {
	ImageURL string `validate:"omitempty,http_url"`
}

type DetectResponse struct {
	Faces []domain.FaceRecord `json:"faces"`
	Count int                 `json:"count"`
}

// SwapFaces POST /swap_faces - swap the source face onto the target image
func (h *SwapHandler) SwapFaces(c *fiber.Ctx) error {
	source := media.Input{Side: domain.SideSource, File: formFile(c, "source_face")}
	target := media.Input{Side: domain.SideTarget, File: formFile(c, "target")}

	form := swapForm{}
	if source.File == nil {
		form.SourceURL = c.FormValue("source_face_url")
		source.URL = form.SourceURL
	}
	if target.File == nil {
		form.TargetURL = c.FormValue("target_url")
		target.URL = form.TargetURL
	}

	// both sides are checked before anything touches the disk
	if err := source.Validate(); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return err
	}
	if err := h.validateURLs(form); err != nil {
		return err
	}

	session := h.scratch.NewSession()
	defer session.Cleanup()

	ctx := c.UserContext()
	sourcePath, err := h.ingest(ctx, session, source)
	if err != nil {
		return err
	}
	targetPath, err := h.ingest(ctx, session, target)
	if err != nil {
		return err
	}

	result, err := h.service.Swap(ctx, domain.SwapRequest{
		SourcePath: sourcePath,
		TargetPath: targetPath,
		RequestID:  middleware.RequestID(c),
		ClientIP:   c.IP(),
	})
	if err != nil {
		return err
	}

	h.logger.Info("faces swapped",
		slog.String("swap_id", result.ID.String()),
		slog.Int("width", result.Width),
		slog.Int("height", result.Height),
		slog.Duration("latency", result.Latency),
	)

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set("X-Swap-ID", result.ID.String())
	return c.Send(result.Image)
}

// DetectFaces POST /detect_faces - list the faces found in one image
func (h *SwapHandler) DetectFaces(c *fiber.Ctx) error {
	in := media.Input{Side: "image", File: formFile(c, "image")}

	form := detectForm{}
	if in.File == nil {
		form.ImageURL = c.FormValue("image_url")
		in.URL = form.ImageURL
	}
	if err := in.Validate(); err != nil {
		if errors.Is(err, domain.ErrMissingImage) {
			return domain.ErrMissingImage.WithMessage("An image file or image_url is required")
		}
		return err
	}
	if err := h.validator.Struct(form); err != nil {
		return domain.ErrInvalidURL.WithError(err)
	}

	session := h.scratch.NewSession()
	defer session.Cleanup()

	path, err := h.ingest(c.UserContext(), session, in)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && errors.Is(appErr, domain.ErrDownloadFailed) {
			return appErr.WithMessage("Failed to download image")
		}
		return err
	}

	faces, err := h.service.Detect(c.UserContext(), path)
	if err != nil {
		return err
	}
	if faces == nil {
		faces = []domain.FaceRecord{}
	}

	return c.JSON(DetectResponse{Faces: faces, Count: len(faces)})
}

func (h *SwapHandler) validateURLs(form swapForm) error {
	err := h.validator.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := "source_face_url"
		if verrs[0].StructField() == "TargetURL" {
			field = "target_url"
		}
		return domain.ErrInvalidURL.WithError(err).WithMessage(field + " must be an absolute http or https URL")
	}
	return domain.ErrInvalidURL.WithError(err)
}

func (h *SwapHandler) ingest(ctx context.Context, session *media.Session, in media.Input) (string, error) {
	path, err := session.Ingest(ctx, h.fetcher, in)
	if in.File == nil && h.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		h.metrics.RecordDownload(status)
	}
	return path, err
}

// formFile returns the uploaded file for key, or nil when the request has none.
func formFile(c *fiber.Ctx, key string) *multipart.FileHeader {
	fh, err := c.FormFile(key)
	if err != nil {
		return nil
	}
	return fh
}
