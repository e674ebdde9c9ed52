package rekognition

import (
	"context"
	"image"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// mockRekognitionAPI is a mock implementation of DetectFacesAPI for testing
type mockRekognitionAPI struct {
	detectFacesFunc func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

func (m *mockRekognitionAPI) DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	if m.detectFacesFunc != nil {
		return m.detectFacesFunc(ctx, params, optFns...)
	}
	return &rekognition.DetectFacesOutput{}, nil
}

// stubEmbedder returns a fixed vector and records the landmarks it saw
type stubEmbedder struct {
	err   error
	calls []domain.Landmarks
}

func (s *stubEmbedder) Embed(ctx context.Context, img image.Image, landmarks domain.Landmarks) ([]float32, error) {
	s.calls = append(s.calls, landmarks)
	if s.err != nil {
		return nil, s.err
	}
	emb := make([]float32, domain.EmbeddingSize)
	emb[0] = 1
	return emb, nil
}
