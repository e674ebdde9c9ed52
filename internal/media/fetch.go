package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrTooLarge = errors.New("remote image exceeds size limit")

// FetchConfig holds the limits for remote image downloads
type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// DefaultFetchConfig returns a FetchConfig with sensible defaults
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:  15 * time.Second,
		MaxBytes: 20 << 20,
	}
}

// Fetcher downloads remote images. Every download is a single attempt.
type Fetcher struct {
	httpClient *http.Client
	config     FetchConfig
}

func NewFetcher(config FetchConfig) *Fetcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultFetchConfig().Timeout
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultFetchConfig().MaxBytes
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// Fetch streams the body of url into w. Anything but 200 is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return n, fmt.Errorf("read %s: %w", url, err)
	}
	if n > f.config.MaxBytes {
		return n, fmt.Errorf("get %s: %w (limit %d bytes)", url, ErrTooLarge, f.config.MaxBytes)
	}
	return n, nil
}
