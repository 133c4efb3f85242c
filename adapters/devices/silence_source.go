package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aieducate/livesession/internal/audio"
)

// SilenceSource is a microphone stand-in producing silence in real time.
// It paces Read to the configured sample rate so downstream framing and
// send cadence behave like a real device.
type SilenceSource struct {
	sampleRate int

	mu      sync.Mutex
	started bool
	closed  chan struct{}
}

var _ audio.Source = (*SilenceSource)(nil)

func NewSilenceSource(sampleRate int) *SilenceSource {
	return &SilenceSource{sampleRate: sampleRate}
}

// Start implements audio.Source
func (s *SilenceSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.closed = make(chan struct{})
	return nil
}

// Read zeroes p after waiting the real-time duration the samples represent
func (s *SilenceSource) Read(p []float32) (int, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return 0, fmt.Errorf("source not started")
	}
	closed := s.closed
	s.mu.Unlock()

	wait := time.Duration(len(p)) * time.Second / time.Duration(s.sampleRate)
	select {
	case <-closed:
		return 0, fmt.Errorf("source closed")
	case <-time.After(wait):
	}

	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// Close implements audio.Source. Safe to call repeatedly.
func (s *SilenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		close(s.closed)
		s.started = false
	}
	return nil
}
