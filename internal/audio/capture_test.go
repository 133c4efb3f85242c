package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeSource feeds queued frames and then reports EOF
type fakeSource struct {
	mu       sync.Mutex
	frames   [][]float32
	startErr error
	started  bool
	closes   int
}

func (s *fakeSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeSource) Read(p []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return 0, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	n := copy(p, frame)
	return n, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func constantFrame(n int, v float32) []float32 {
	frame := make([]float32, n)
	for i := range frame {
		frame[i] = v
	}
	return frame
}

func TestRecorderBlockFraming(t *testing.T) {
	// 4096 + 2048 samples at the wire rate: exactly one full block comes out
	source := &fakeSource{frames: [][]float32{
		constantFrame(1024, 0.25), constantFrame(1024, 0.25),
		constantFrame(1024, 0.25), constantFrame(1024, 0.25),
		constantFrame(1024, 0.25), constantFrame(1024, 0.25),
	}}
	recorder := NewRecorder(source, WireSampleRate, zap.NewNop())

	chunks := make(chan []byte, 4)
	if err := recorder.Start(context.Background(), func(chunk []byte) {
		chunks <- chunk
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case chunk := <-chunks:
		if len(chunk) != BlockSamples*2 {
			t.Errorf("Expected %d-byte chunk, got %d", BlockSamples*2, len(chunk))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for capture chunk")
	}

	recorder.Stop()

	select {
	case <-chunks:
		t.Error("Expected exactly one full block, got a second chunk")
	default:
	}
}

func TestRecorderLevel(t *testing.T) {
	source := &fakeSource{frames: [][]float32{constantFrame(1024, 0.5)}}
	recorder := NewRecorder(source, WireSampleRate, zap.NewNop())

	if err := recorder.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for recorder.Level() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	level := recorder.Level()
	if level < 0.49 || level > 0.51 {
		t.Errorf("Expected level near 0.5, got %f", level)
	}

	recorder.Stop()
	if recorder.Level() != 0 {
		t.Errorf("Expected level reset to 0 after Stop, got %f", recorder.Level())
	}
}

func TestRecorderStartFailureReleasesSource(t *testing.T) {
	source := &fakeSource{startErr: errors.New("permission denied")}
	recorder := NewRecorder(source, WireSampleRate, zap.NewNop())

	err := recorder.Start(context.Background(), func([]byte) {})
	if err == nil {
		t.Fatal("Expected Start to fail")
	}
	if recorder.Recording() {
		t.Error("Recorder should not report recording after failed Start")
	}

	source.mu.Lock()
	closes := source.closes
	source.mu.Unlock()
	if closes == 0 {
		t.Error("Expected source to be released after failed Start")
	}
}

func TestRecorderStopIdempotent(t *testing.T) {
	source := &fakeSource{}
	recorder := NewRecorder(source, WireSampleRate, zap.NewNop())

	// Stop before any Start must be safe
	recorder.Stop()
	recorder.Stop()

	if err := recorder.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	recorder.Stop()
	recorder.Stop()

	if recorder.Recording() {
		t.Error("Recorder should not be recording after Stop")
	}
}

func TestRecorderStartTwiceIsNoop(t *testing.T) {
	source := &fakeSource{}
	recorder := NewRecorder(source, WireSampleRate, zap.NewNop())

	if err := recorder.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := recorder.Start(context.Background(), func([]byte) {}); err != nil {
		t.Errorf("Second Start should be a no-op, got %v", err)
	}
	recorder.Stop()
}
