package api

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/media"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/metrics"
)

type Config struct {
	// BodyLimit caps the multipart body in bytes (default: fiber's 4MB)
	BodyLimit int
	// RateLimitPerMinute limits swap and detect calls per client IP. 0 disables it.
	RateLimitPerMinute int
}

type Dependencies struct {
	Service handler.SwapService
	Scratch *media.Scratch
	Fetcher *media.Fetcher
	Metrics *metrics.Metrics
	// Jobs and DB are nil when no database is configured
	Jobs handler.SwapJobReader
	DB   handler.Pinger
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, cfg Config, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		BodyLimit:    cfg.BodyLimit,
		AppName:      "Face Swap API",
	})

	r := &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
	if cfg.RateLimitPerMinute > 0 {
		limiterCfg := middleware.DefaultRateLimiterConfig()
		limiterCfg.Max = cfg.RateLimitPerMinute
		r.rateLimiter = middleware.NewRateLimiter(limiterCfg)
	}
	return r
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Logger(r.logger, r.deps.Metrics))
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept",
		ExposeHeaders: "X-Swap-ID,X-Request-ID",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	r.app.Get("/", handler.Welcome)

	healthHandler := handler.NewHealthHandler(r.deps.DB, r.logger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps.Metrics != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(r.deps.Metrics.Handler()))
	}

	swapHandler := handler.NewSwapHandler(
		r.deps.Service,
		r.deps.Scratch,
		r.deps.Fetcher,
		validator.New(),
		r.deps.Metrics,
		r.logger,
	)

	limited := []fiber.Handler{}
	if r.rateLimiter != nil {
		limited = append(limited, r.rateLimiter.Handler())
	}
	r.app.Post("/swap_faces", append(limited, swapHandler.SwapFaces)...)
	r.app.Post("/detect_faces", append(limited, swapHandler.DetectFaces)...)

	if r.deps.Jobs != nil {
		jobHandler := handler.NewSwapJobHandler(r.deps.Jobs)
		r.app.Get("/swaps", jobHandler.List)
		r.app.Get("/swaps/:id", jobHandler.Get)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
