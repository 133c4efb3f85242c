package devices

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/aieducate/livesession/internal/audio"
)

// WAVSource is a microphone stand-in backed by a WAV file, for development
// and testing without real audio hardware. Multi-channel files are mixed down
// to mono. Read returns io.EOF once the file is exhausted.
type WAVSource struct {
	logger *zap.Logger
	path   string

	mu         sync.Mutex
	samples    []float32
	sampleRate int
	pos        int
	started    bool
}

var _ audio.Source = (*WAVSource)(nil)

func NewWAVSource(path string, logger *zap.Logger) *WAVSource {
	return &WAVSource{logger: logger, path: path}
}

// SampleRate returns the file's native sample rate. Valid after Start.
func (s *WAVSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// Start decodes the whole file into memory
func (s *WAVSource) Start(ctx context.Context) error {
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

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return fmt.Errorf("%s has no usable format", s.path)
	}

	channels := buf.Format.NumChannels
	bits := int(decoder.BitDepth)
	if bits == 0 {
		bits = 16
	}
	scale := float32(int64(1) << (bits - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	s.samples = samples
	s.sampleRate = buf.Format.SampleRate
	s.pos = 0
	s.started = true

	s.logger.Info("WAV microphone source opened",
		zap.String("path", s.path),
		zap.Int("sample_rate", s.sampleRate),
		zap.Int("frames", frames))
	return nil
}

// Read fills p with the next samples from the file
func (s *WAVSource) Read(p []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return 0, fmt.Errorf("source not started")
	}
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(p, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

// Close releases the decoded samples. Safe to call repeatedly.
func (s *WAVSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = nil
	s.started = false
	return nil
}
