package rekognition

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 64, A: 255})
		}
	}
	return img
}

func landmark(t types.LandmarkType, x, y float32) types.Landmark {
	return types.Landmark{Type: t, X: aws.Float32(x), Y: aws.Float32(y)}
}

func fullDetail(confidence float32) types.FaceDetail {
	return types.FaceDetail{
		BoundingBox: &types.BoundingBox{
			Left:   aws.Float32(0.25),
			Top:    aws.Float32(0.1),
			Width:  aws.Float32(0.5),
			Height: aws.Float32(0.8),
		},
		Confidence: aws.Float32(confidence),
		Landmarks: []types.Landmark{
			// subject's left eye appears on the image right
			landmark(types.LandmarkTypeEyeLeft, 0.6, 0.3),
			landmark(types.LandmarkTypeEyeRight, 0.4, 0.3),
			landmark(types.LandmarkTypeNose, 0.5, 0.5),
			landmark(types.LandmarkTypeMouthLeft, 0.58, 0.7),
			landmark(types.LandmarkTypeMouthRight, 0.42, 0.7),
			landmark(types.LandmarkTypeChinBottom, 0.5, 0.9),
		},
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	var gotInput *rekognition.DetectFacesInput
	api := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			gotInput = params
			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{fullDetail(99.5)},
			}, nil
		},
	}
	embedder := &stubEmbedder{}

	faces, err := NewAnalyzer(api, embedder, DefaultConfig(), nil).Analyze(context.Background(), testImage())

	require.NoError(t, err)
	require.Len(t, faces, 1)
	require.NotNil(t, gotInput)
	assert.NotEmpty(t, gotInput.Image.Bytes)

	face := faces[0]
	assert.InDelta(t, 0.995, face.Score, 1e-6)
	assert.InDelta(t, 50, face.BoundingBox.X1, 1e-4)
	assert.InDelta(t, 10, face.BoundingBox.Y1, 1e-4)
	assert.InDelta(t, 150, face.BoundingBox.X2, 1e-4)
	assert.InDelta(t, 90, face.BoundingBox.Y2, 1e-4)

	assert.InDelta(t, 80, face.Landmarks[0].X, 1e-4, "left-most eye first")
	assert.InDelta(t, 120, face.Landmarks[1].X, 1e-4)
	assert.InDelta(t, 100, face.Landmarks[2].X, 1e-4)
	assert.InDelta(t, 84, face.Landmarks[3].X, 1e-4, "left-most mouth corner first")
	assert.InDelta(t, 116, face.Landmarks[4].X, 1e-4)

	require.Len(t, embedder.calls, 1)
	assert.Equal(t, face.Landmarks, embedder.calls[0])
	assert.Len(t, face.Embedding, domain.EmbeddingSize)
}

func noiseImage(w, h int) image.Image {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func TestAnalyzer_Analyze_PayloadLimit(t *testing.T) {
	tests := []struct {
		name         string
		maxBytes     int
		wantErr      error
		wantDownsize bool
	}{
		{name: "fits as is", maxBytes: maxImageSize},
		{name: "downscaled to fit", maxBytes: 20_000, wantDownsize: true},
		{name: "cannot fit", maxBytes: 10, wantErr: ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []byte
			api := &mockRekognitionAPI{
				detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					sent = params.Image.Bytes
					return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{fullDetail(99)}}, nil
				},
			}
			cfg := DefaultConfig()
			cfg.MaxPayloadBytes = tt.maxBytes

			faces, err := NewAnalyzer(api, &stubEmbedder{}, cfg, nil).Analyze(context.Background(), noiseImage(200, 200))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, domain.ErrInvalidImage)
				assert.Nil(t, sent)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, sent)
			assert.LessOrEqual(t, len(sent), tt.maxBytes)

			decoded, err := jpeg.DecodeConfig(bytes.NewReader(sent))
			require.NoError(t, err)
			if tt.wantDownsize {
				assert.Less(t, decoded.Width, 200)
				assert.InDelta(t, decoded.Width, decoded.Height, 1)
			} else {
				assert.Equal(t, 200, decoded.Width)
			}

			// coordinates are mapped onto the original 200x200 image
			require.Len(t, faces, 1)
			assert.InDelta(t, 50, faces[0].BoundingBox.X1, 1e-4)
			assert.InDelta(t, 20, faces[0].BoundingBox.Y1, 1e-4)
			assert.InDelta(t, 150, faces[0].BoundingBox.X2, 1e-4)
			assert.InDelta(t, 180, faces[0].BoundingBox.Y2, 1e-4)
		})
	}
}

func TestAnalyzer_Analyze_Filters(t *testing.T) {
	partial := fullDetail(99)
	partial.Landmarks = partial.Landmarks[:2]

	api := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{fullDetail(20), partial, fullDetail(90)},
			}, nil
		},
	}

	faces, err := NewAnalyzer(api, nil, DefaultConfig(), nil).Analyze(context.Background(), testImage())

	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.InDelta(t, 0.9, faces[0].Score, 1e-6)
	assert.Nil(t, faces[0].Embedding)
}

func TestAnalyzer_Analyze_NoFaces(t *testing.T) {
	faces, err := NewAnalyzer(&mockRekognitionAPI{}, &stubEmbedder{}, DefaultConfig(), nil).Analyze(context.Background(), testImage())

	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestAnalyzer_Analyze_EmbedError(t *testing.T) {
	api := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{fullDetail(99)}}, nil
		},
	}
	boom := errors.New("session closed")

	_, err := NewAnalyzer(api, &stubEmbedder{err: boom}, DefaultConfig(), nil).Analyze(context.Background(), testImage())

	assert.ErrorIs(t, err, boom)
}

func TestAnalyzer_Analyze_APIErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "invalid image format",
			err:     &smithy.GenericAPIError{Code: errCodeInvalidImageFormat, Message: "bad image"},
			wantErr: domain.ErrInvalidImage,
		},
		{
			name:    "access denied",
			err:     &smithy.GenericAPIError{Code: errCodeAccessDenied, Message: "denied"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "throttled",
			err:     &smithy.GenericAPIError{Code: errCodeThrottling, Message: "slow down"},
			wantErr: ErrThrottled,
		},
		{
			name:    "network",
			err:     context.DeadlineExceeded,
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockRekognitionAPI{
				detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					return nil, tt.err
				},
			}

			_, err := NewAnalyzer(api, nil, DefaultConfig(), nil).Analyze(context.Background(), testImage())

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, float32(50), cfg.MinConfidence)
	assert.Equal(t, 90, cfg.JPEGQuality)
	assert.Equal(t, maxImageSize, cfg.MaxPayloadBytes)
	assert.Equal(t, Name, NewAnalyzer(nil, nil, cfg, nil).Name())
}
