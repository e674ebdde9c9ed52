package rekognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/imaging"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/provider"
)

const (
	Name = "rekognition"

	// maxImageSize is the maximum image size supported by DetectFaces (5MB)
	maxImageSize = 5 * 1024 * 1024

	maxShrinkSteps = 5
)

// Ensure Analyzer implements provider.FaceAnalyzer interface at compile time
var _ provider.FaceAnalyzer = (*Analyzer)(nil)

// Analyzer detects faces with AWS Rekognition and embeds them with a local
// recognizer, since Rekognition never exposes identity vectors.
type Analyzer struct {
	api      DetectFacesAPI
	embedder provider.Embedder
	config   Config
	logger   *slog.Logger
}

// NewAnalyzer creates an analyzer. embedder may be nil for detection-only use,
// in which case faces carry no embedding and cannot be swapped.
func NewAnalyzer(api DetectFacesAPI, embedder provider.Embedder, cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPayloadBytes <= 0 || cfg.MaxPayloadBytes > maxImageSize {
		cfg.MaxPayloadBytes = maxImageSize
	}
	return &Analyzer{
		api:      api,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}
}

// Analyze returns the faces Rekognition finds, in API order. Faces without
// the five alignment landmarks are skipped.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image) ([]domain.FaceRecord, error) {
	payload, err := a.encode(img)
	if err != nil {
		return nil, err
	}

	output, err := a.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: payload},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return nil, parseError(err)
	}

	size := img.Bounds().Size()
	faces := make([]domain.FaceRecord, 0, len(output.FaceDetails))
	for i, detail := range output.FaceDetails {
		confidence := aws.ToFloat32(detail.Confidence)
		if confidence < a.config.MinConfidence {
			continue
		}

		face, ok := toFaceRecord(detail, size)
		if !ok {
			a.logger.Debug("skipping face without alignment landmarks", "index", i)
			continue
		}

		if a.embedder != nil {
			face.Embedding, err = a.embedder.Embed(ctx, img, face.Landmarks)
			if err != nil {
				return nil, fmt.Errorf("face %d: %w", i, err)
			}
		}
		faces = append(faces, face)
	}

	return faces, nil
}

// encode returns the JPEG sent to DetectFaces, downscaled until it fits
// MaxPayloadBytes. Rekognition answers in ratios of the image it received,
// so the results still map onto img.
func (a *Analyzer) encode(img image.Image) ([]byte, error) {
	payload, err := imaging.EncodeJPEG(img, a.config.JPEGQuality)
	if err != nil {
		return nil, err
	}

	limit := a.config.MaxPayloadBytes
	for step := 0; len(payload) > limit; step++ {
		if step == maxShrinkSteps {
			return nil, domain.ErrInvalidImage.
				WithError(fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(payload))).
				WithMessage("Image is too large to analyze")
		}

		size := img.Bounds().Size()
		scale := math.Sqrt(float64(limit)/float64(len(payload))) * 0.9
		next := image.Pt(max(1, int(float64(size.X)*scale)), max(1, int(float64(size.Y)*scale)))
		a.logger.Debug("downscaling rekognition payload",
			slog.Int("bytes", len(payload)),
			slog.Int("width", next.X),
			slog.Int("height", next.Y),
		)

		img = imaging.Resize(img, next)
		if payload, err = imaging.EncodeJPEG(img, a.config.JPEGQuality); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (a *Analyzer) Name() string {
	return Name
}

func (a *Analyzer) Close() error {
	return nil
}

// toFaceRecord converts ratio coordinates to pixels. Rekognition names eyes
// and mouth corners from the subject's point of view, so each pair is
// ordered by x to match the alignment template.
func toFaceRecord(detail types.FaceDetail, size image.Point) (domain.FaceRecord, bool) {
	w, h := float32(size.X), float32(size.Y)

	points := make(map[types.LandmarkType]domain.Point, len(detail.Landmarks))
	for _, lm := range detail.Landmarks {
		if lm.X == nil || lm.Y == nil {
			continue
		}
		points[lm.Type] = domain.Point{X: *lm.X * w, Y: *lm.Y * h}
	}

	eyeA, ok1 := points[types.LandmarkTypeEyeLeft]
	eyeB, ok2 := points[types.LandmarkTypeEyeRight]
	nose, ok3 := points[types.LandmarkTypeNose]
	mouthA, ok4 := points[types.LandmarkTypeMouthLeft]
	mouthB, ok5 := points[types.LandmarkTypeMouthRight]
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return domain.FaceRecord{}, false
	}
	if eyeA.X > eyeB.X {
		eyeA, eyeB = eyeB, eyeA
	}
	if mouthA.X > mouthB.X {
		mouthA, mouthB = mouthB, mouthA
	}

	face := domain.FaceRecord{
		Landmarks: domain.Landmarks{eyeA, eyeB, nose, mouthA, mouthB},
		Score:     aws.ToFloat32(detail.Confidence) / 100,
	}
	if box := detail.BoundingBox; box != nil {
		left, top := aws.ToFloat32(box.Left), aws.ToFloat32(box.Top)
		face.BoundingBox = domain.BoundingBox{
			X1: left * w,
			Y1: top * h,
			X2: (left + aws.ToFloat32(box.Width)) * w,
			Y2: (top + aws.ToFloat32(box.Height)) * h,
		}
	}
	return face, true
}
