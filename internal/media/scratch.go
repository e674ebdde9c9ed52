package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/domain"
)

// Scratch is the directory that holds request images while they are processed.
type Scratch struct {
	dir            string
	logger         *slog.Logger
	onCleanupError func()
}

func NewScratch(dir string, logger *slog.Logger) (*Scratch, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir %s: %w", dir, err)
	}
	return &Scratch{
		dir:    dir,
		logger: logger.With("component", "scratch"),
	}, nil
}

func (s *Scratch) Dir() string {
	return s.dir
}

// OnCleanupError registers a callback run for every scratch file that could
// not be removed.
func (s *Scratch) OnCleanupError(fn func()) *Scratch {
	s.onCleanupError = fn
	return s
}

// NewSession starts a request-scoped set of scratch files with a unique prefix.
func (s *Scratch) NewSession() *Session {
	return &Session{
		id:             uuid.NewString(),
		dir:            s.dir,
		logger:         s.logger,
		onCleanupError: s.onCleanupError,
	}
}

// Purge removes every regular file in the scratch directory. Only safe while
// no request is in flight, so it runs once at startup.
func (s *Scratch) Purge() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Error("failed to remove stale scratch file",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		removed++
	}
	return removed, nil
}

// Session tracks the files one request wrote so Cleanup removes exactly those.
type Session struct {
	id             string
	dir            string
	logger         *slog.Logger
	onCleanupError func()

	mu    sync.Mutex
	files []string
}

func (s *Session) ID() string {
	return s.id
}

// Files returns the paths created so far.
func (s *Session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Ingest materializes in as a file and returns its path. Upload names keep
// only their extension; downloads are stored as <id>_<side>_image.jpg.
func (s *Session) Ingest(ctx context.Context, fetcher *Fetcher, in Input) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	if in.fromURL() {
		return s.download(ctx, fetcher, in)
	}
	return s.saveUpload(in)
}

func (s *Session) saveUpload(in Input) (string, error) {
	ext := strings.ToLower(filepath.Ext(in.File.Filename))
	path := s.track(fmt.Sprintf("%s_%s%s", s.id, in.Side, ext))

	src, err := in.File.Open()
	if err != nil {
		return "", domain.ErrInvalidImage.WithError(fmt.Errorf("open %s upload: %w", in.Side, err))
	}
	defer src.Close()

	if err := writeFile(path, src); err != nil {
		return "", domain.ErrInternal.WithError(fmt.Errorf("save %s upload: %w", in.Side, err))
	}

	s.logger.Debug("upload saved",
		slog.String("side", string(in.Side)),
		slog.String("path", path),
		slog.Int64("size", in.File.Size),
	)
	return path, nil
}

func (s *Session) download(ctx context.Context, fetcher *Fetcher, in Input) (string, error) {
	path := s.track(fmt.Sprintf("%s_%s_image.jpg", s.id, in.Side))

	f, err := os.Create(path)
	if err != nil {
		return "", domain.ErrInternal.WithError(fmt.Errorf("create %s file: %w", in.Side, err))
	}

	n, fetchErr := fetcher.Fetch(ctx, strings.TrimSpace(in.URL), f)
	closeErr := f.Close()

	if fetchErr != nil {
		return "", domain.ErrDownloadFailed.
			WithError(fetchErr).
			WithMessage(fmt.Sprintf("Failed to download %s image", in.Side))
	}
	if closeErr != nil {
		return "", domain.ErrInternal.WithError(fmt.Errorf("write %s file: %w", in.Side, closeErr))
	}

	s.logger.Debug("remote image downloaded",
		slog.String("side", string(in.Side)),
		slog.String("path", path),
		slog.Int64("size", n),
	)
	return path, nil
}

// track registers a file before it is written so partial files are cleaned too.
func (s *Session) track(name string) string {
	path := filepath.Join(s.dir, name)
	s.mu.Lock()
	s.files = append(s.files, path)
	s.mu.Unlock()
	return path
}

// Cleanup deletes the session's files. Failures are logged, never returned.
func (s *Session) Cleanup() {
	s.mu.Lock()
	files := s.files
	s.files = nil
	s.mu.Unlock()

	for _, path := range files {
		err := os.Remove(path)
		switch {
		case err == nil:
			s.logger.Debug("scratch file removed", slog.String("path", path))
		case errors.Is(err, os.ErrNotExist):
		default:
			s.logger.Error("failed to remove scratch file",
				slog.String("path", path),
				slog.Any("error", err),
			)
			if s.onCleanupError != nil {
				s.onCleanupError()
			}
		}
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
