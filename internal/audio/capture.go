package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
	"go.uber.org/zap"
)

// Source abstracts an exclusive microphone stream. Implementations deliver
// mono float32 samples at a fixed native sample rate, with echo cancellation
// and noise suppression applied by the device layer.
type Source interface {
	// Start acquires the underlying device. It must be called before Read.
	Start(ctx context.Context) error

	// Read fills p with mono float32 samples and returns the number read.
	// It returns io.EOF when the stream ends.
	Read(p []float32) (int, error)

	// Close releases the device. It must be safe to call after a failed
	// Start and to call more than once.
	Close() error
}

// Sink receives fixed-size binary PCM chunks from the capture pipeline
type Sink = func(chunk []byte)

// Recorder acquires a microphone source and runs the capture pipeline:
// a continuously updated loudness level, resampling to the 16 kHz wire rate,
// float32 to int16 conversion, and fixed 4096-sample block framing.
type Recorder struct {
	logger     *zap.Logger
	source     Source
	sourceRate int

	mu        sync.Mutex
	recording bool
	cancel    context.CancelFunc
	done      chan struct{}

	level atomicFloat64
}

// NewRecorder creates a recorder reading from source at the given native
// sample rate. Audio is resampled to WireSampleRate when the rates differ.
func NewRecorder(source Source, sourceRate int, logger *zap.Logger) *Recorder {
	return &Recorder{
		logger:     logger,
		source:     source,
		sourceRate: sourceRate,
	}
}

// Start acquires the microphone and begins delivering binary chunks to sink.
// It returns an error if the device cannot be opened; a failed acquisition
// releases anything partially acquired. No-op if already recording.
func (r *Recorder) Start(ctx context.Context, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return nil
	}

	if err := r.source.Start(ctx); err != nil {
		_ = r.source.Close()
		return fmt.Errorf("failed to open audio source: %w", err)
	}

	var rs resampling.Resampler
	if r.sourceRate != WireSampleRate {
		var err error
		rs, err = resampling.New(&resampling.Config{
			InputRate:  float64(r.sourceRate),
			OutputRate: float64(WireSampleRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			_ = r.source.Close()
			return fmt.Errorf("failed to create resampler: %w", err)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.recording = true

	go r.loop(loopCtx, rs, sink)

	r.logger.Info("Recording started",
		zap.Int("sourceRate", r.sourceRate),
		zap.Int("wireRate", WireSampleRate))
	return nil
}

func (r *Recorder) loop(ctx context.Context, rs resampling.Resampler, sink Sink) {
	defer close(r.done)

	buf := make([]float32, 1024)
	pending := make([]byte, 0, BlockSamples*2)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := r.source.Read(buf)
		if n > 0 {
			frame := buf[:n]
			r.level.Store(rmsLevel(frame))

			out := frame
			if rs != nil {
				in := make([]float64, n)
				for i, s := range frame {
					in[i] = float64(s)
				}
				res, rerr := rs.Process(in)
				if rerr != nil {
					r.logger.Error("Resampling failed", zap.Error(rerr))
					continue
				}
				out = make([]float32, len(res))
				for i, s := range res {
					out[i] = float32(s)
				}
			}

			pending = append(pending, FloatToPCM16(out)...)
			for len(pending) >= BlockSamples*2 {
				chunk := make([]byte, BlockSamples*2)
				copy(chunk, pending[:BlockSamples*2])
				pending = pending[BlockSamples*2:]
				sink(chunk)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				r.logger.Error("Audio source read failed", zap.Error(err))
			}
			return
		}
	}
}

// Stop tears down the capture pipeline, stops the source, and resets the
// level to 0. Safe to call when not recording and to call more than once.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	// Closing the source unblocks any pending Read before we wait
	_ = r.source.Close()
	<-done
	r.level.Store(0)

	r.logger.Info("Recording stopped")
}

// Recording reports whether the capture pipeline is running
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Level returns the current normalized loudness in [0, 1]
func (r *Recorder) Level() float64 {
	return r.level.Load()
}
