package rekognition

// Config holds configuration for the AWS Rekognition detector
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MinConfidence drops faces Rekognition reports below this confidence (0-100)
	MinConfidence float32

	// JPEGQuality is used when re-encoding the decoded image for upload
	JPEGQuality int

	// MaxPayloadBytes caps the JPEG sent to DetectFaces. Larger images are
	// downscaled until they fit. Zero means the 5MB API limit.
	MaxPayloadBytes int
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:          "us-east-1",
		MinConfidence:   50,
		JPEGQuality:     90,
		MaxPayloadBytes: maxImageSize,
	}
}
