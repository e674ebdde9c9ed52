package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error" example:"No face detected in source image"`
	Code  string `json:"code" example:"NO_FACE_IN_SOURCE"`
}

// SwappedImage stands in for the raw JPEG body of a successful swap
type SwappedImage struct{}

type BoundingBox struct {
	X1 float64 `json:"x1" example:"112.4"`
	Y1 float64 `json:"y1" example:"80.1"`
	X2 float64 `json:"x2" example:"230.9"`
	Y2 float64 `json:"y2" example:"236.0"`
}

type Point struct {
	X float64 `json:"x" example:"150.2"`
	Y float64 `json:"y" example:"140.7"`
}

type DetectedFace struct {
	BBox      BoundingBox `json:"bbox"`
	Landmarks []Point     `json:"landmarks"`
	Score     float64     `json:"score" example:"0.97"`
}

type DetectResponse struct {
	Faces []DetectedFace `json:"faces"`
	Count int            `json:"count" example:"1"`
}

type SwapJob struct {
	ID          string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	RequestID   string `json:"request_id" example:"6f1c1b6e-2a55-4f0e-9b43-0d5bb2c8e7a1"`
	Status      string `json:"status" example:"completed"`
	ErrorCode   string `json:"error_code,omitempty" example:""`
	Provider    string `json:"provider" example:"onnx/onnx"`
	SourceFaces int    `json:"source_faces" example:"1"`
	TargetFaces int    `json:"target_faces" example:"2"`
	Width       int    `json:"width" example:"800"`
	Height      int    `json:"height" example:"600"`
	LatencyMs   int64  `json:"latency_ms" example:"412"`
	CreatedAt   string `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

type SwapJobListResponse struct {
	Jobs   []SwapJob `json:"jobs"`
	Limit  int       `json:"limit" example:"20"`
	Offset int       `json:"offset" example:"0"`
}

type HealthResponse struct {
	Message string `json:"message" example:"API is running correctly"`
}

type ReadyResponse struct {
	Status string `json:"status" example:"ready"`
}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Face Swap API",
		Version:     "v1.0.0",
		Description: "Swaps the face from a source image onto every face found in a target image",
		Host:        "localhost:5000",
	})

	imageErrors := []response.Response{
		response.New(ErrorResponse{Code: "MISSING_IMAGE", Error: "Both source and target images are required"}, "400", "Bad Request"),
		response.New(ErrorResponse{Code: "INVALID_FILE_TYPE", Error: "Invalid file type. Only .png, .jpg, .jpeg are allowed"}, "400", "Bad Request"),
		response.New(ErrorResponse{Code: "INVALID_URL", Error: "Image URL must be an absolute http or https URL"}, "400", "Bad Request"),
		response.New(ErrorResponse{Code: "DOWNLOAD_FAILED", Error: "Failed to download source image"}, "400", "Bad Request"),
		response.New(ErrorResponse{Code: "INVALID_IMAGE", Error: "Invalid image format or corrupted file"}, "400", "Bad Request"),
		response.New(ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Error: "Request body too large"}, "413", "Payload Too Large"),
		response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Error: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
	}

	endpoints := []*endpoint.EndPoint{
		// POST /swap_faces
		endpoint.New(
			endpoint.POST,
			"/swap_faces",
			endpoint.WithTags("Swap"),
			endpoint.WithSummary("Swap a face onto a target image"),
			endpoint.WithDescription("Multipart form. Send source_face and target as files, or source_face_url and target_url as http(s) URLs. A file wins over a URL for the same side. Returns the swapped image as JPEG with the job id in the X-Swap-ID header."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg"), mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SwappedImage{}, "200", "Swapped image (image/jpeg)"),
			}),
			endpoint.WithErrors(append(append([]response.Response{}, imageErrors...),
				response.New(ErrorResponse{Code: "NO_FACE_IN_SOURCE", Error: "No face detected in source image"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "NO_FACE_IN_TARGET", Error: "No face detected in target image"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "SWAP_FAILED", Error: "Failed to swap faces"}, "500", "Internal Server Error"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Error: "Internal server error"}, "500", "Internal Server Error"),
			)),
		),

		// POST /detect_faces
		endpoint.New(
			endpoint.POST,
			"/detect_faces",
			endpoint.WithTags("Swap"),
			endpoint.WithSummary("Detect faces in an image"),
			endpoint.WithDescription("Multipart form with an image file or an image_url field. Faces are ordered left to right."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DetectResponse{}, "200", "Faces detected"),
			}),
			endpoint.WithErrors(append(append([]response.Response{}, imageErrors...),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Error: "Internal server error"}, "500", "Internal Server Error"),
			)),
		),

		// GET /swaps
		endpoint.New(
			endpoint.GET,
			"/swaps",
			endpoint.WithTags("Jobs"),
			endpoint.WithSummary("List recent swap jobs"),
			endpoint.WithDescription("Newest first. Only available when a database is configured."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Page size (1-100, default: 20)")),
				parameter.IntParam("offset", parameter.Query, parameter.WithDescription("Rows to skip (default: 0)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SwapJobListResponse{}, "200", "Jobs retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Error: "limit must be between 1 and 100"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Error: "Internal server error"}, "500", "Internal Server Error"),
			}),
		),

		// GET /swaps/:id
		endpoint.New(
			endpoint.GET,
			"/swaps/{id}",
			endpoint.WithTags("Jobs"),
			endpoint.WithSummary("Get a swap job"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Swap id from the X-Swap-ID header")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SwapJob{}, "200", "Job retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SWAP_NOT_FOUND", Error: "Swap job not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Error: "Internal server error"}, "500", "Internal Server Error"),
			}),
		),

		// GET /health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "API is running"),
			}),
		),

		// GET /ready
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Pings the database when one is configured"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReadyResponse{}, "200", "Ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SERVICE_UNAVAILABLE", Error: "Service not ready"}, "503", "Service Unavailable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
