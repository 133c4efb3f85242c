package devices

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/aieducate/livesession/internal/screencap"
)

// StaticFrameSource is a screen-grab stand-in that serves one image file on
// every capture, for development without a real display.
type StaticFrameSource struct {
	logger *zap.Logger
	path   string

	mu      sync.Mutex
	frame   image.Image
	started bool
}

var _ screencap.FrameSource = (*StaticFrameSource)(nil)

func NewStaticFrameSource(path string, logger *zap.Logger) *StaticFrameSource {
	return &StaticFrameSource{logger: logger, path: path}
}

// Start loads the image file
func (s *StaticFrameSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	frame, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.path, err)
	}

	s.frame = frame
	s.started = true
	s.logger.Info("Static frame source opened",
		zap.String("path", s.path),
		zap.String("format", format))
	return nil
}

// Frame returns the loaded image
func (s *StaticFrameSource) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, fmt.Errorf("frame source not started")
	}
	return s.frame, nil
}

// Close releases the loaded image. Safe to call repeatedly.
func (s *StaticFrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
	s.started = false
	return nil
}
