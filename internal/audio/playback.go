package audio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
)

// Output is the single audio output device. The Player exclusively owns the
// output clock and scheduling cursor; no other component may construct a
// second output for the same device.
//
// The device carries two paths mirroring the two wire shapes the agent emits:
// a single-source clip path for one-shot decoded clips, and a streaming path
// where segments are scheduled at explicit start times.
type Output interface {
	// PlayClip plays a one-shot clip immediately on the single-source path,
	// replacing any clip currently playing.
	PlayClip(samples []float32, sampleRate int)

	// PlayStreamAt schedules streamed samples to begin at start.
	PlayStreamAt(samples []float32, sampleRate int, start time.Time)

	// Stop stops and clears everything scheduled on both paths.
	Stop()
}

// Player schedules inbound agent audio for playback. Streamed PCM segments
// are queued strictly in call order on a monotonically advancing cursor:
// back-to-back when the stream keeps up, fast-forwarded to now when a
// real-time gap occurred. Chunks are never dropped and never overlapped.
type Player struct {
	logger *zap.Logger
	clk    clock.Clock
	out    Output

	mu        sync.Mutex
	cursor    time.Time
	pending   map[uint64]*clock.Timer
	nextID    uint64
	clipTimer *clock.Timer
	playing   bool
}

// NewPlayer creates a player over the given output device and clock
func NewPlayer(out Output, clk clock.Clock, logger *zap.Logger) *Player {
	return &Player{
		logger:  logger,
		clk:     clk,
		out:     out,
		pending: make(map[uint64]*clock.Timer),
	}
}

// PlayPCM schedules raw 24 kHz mono int16 PCM on the streaming path. The
// segment starts at the cursor, or at now when the cursor has fallen behind
// the output clock. Scheduling uses the previous segment's computed end time,
// so FIFO order holds regardless of when each chunk arrived.
func (p *Player) PlayPCM(buf []byte) {
	if len(buf) < 2 {
		return
	}

	samples := PCM16ToFloat(buf)
	duration := PCMDuration(len(buf), PlaybackSampleRate)

	p.mu.Lock()
	now := p.clk.Now()
	start := p.cursor
	if start.Before(now) {
		// A gap occurred; absorb it by fast-forwarding, not by dropping
		start = now
	}
	end := start.Add(duration)
	p.cursor = end
	p.playing = true

	id := p.nextID
	p.nextID++
	p.pending[id] = p.clk.AfterFunc(end.Sub(now), func() {
		p.segmentDone(id)
	})
	p.mu.Unlock()

	p.out.PlayStreamAt(samples, PlaybackSampleRate, start)
}

func (p *Player) segmentDone(id uint64) {
	p.mu.Lock()
	delete(p.pending, id)
	if len(p.pending) == 0 && p.clipTimer == nil {
		p.playing = false
	}
	p.mu.Unlock()
}

// PlayClip decodes a base64 container-encoded audio clip (WAV) and plays it
// immediately on the single-source clip path, replacing any clip currently
// playing. One-shot only; streamed audio goes through PlayPCM.
func (p *Player) PlayClip(data string) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("failed to decode clip payload: %w", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(raw))
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("failed to decode wav clip: %w", err)
	}
	if pcm.Format == nil || pcm.Format.SampleRate <= 0 || len(pcm.Data) == 0 {
		return fmt.Errorf("wav clip has no audio data")
	}

	samples := mixdown(pcm.Data, pcm.Format.NumChannels)
	rate := pcm.Format.SampleRate
	duration := time.Duration(len(samples)) * time.Second / time.Duration(rate)

	p.mu.Lock()
	if p.clipTimer != nil {
		p.clipTimer.Stop()
	}
	p.playing = true
	p.clipTimer = p.clk.AfterFunc(duration, func() {
		p.mu.Lock()
		p.clipTimer = nil
		if len(p.pending) == 0 {
			p.playing = false
		}
		p.mu.Unlock()
	})
	p.mu.Unlock()

	p.out.PlayClip(samples, rate)
	return nil
}

// Stop stops every scheduled segment and the clip path, clears the schedule,
// and resets the cursor. Idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	for id, t := range p.pending {
		t.Stop()
		delete(p.pending, id)
	}
	if p.clipTimer != nil {
		p.clipTimer.Stop()
		p.clipTimer = nil
	}
	p.cursor = time.Time{}
	p.playing = false
	p.mu.Unlock()

	p.out.Stop()
}

// Playing reports whether any segment or clip is still scheduled
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// PendingSegments returns the number of streamed segments not yet finished
func (p *Player) PendingSegments() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// mixdown averages interleaved int16-range channels into mono float32,
// dividing negatives by 32768 and positives by 32767.
func mixdown(data []int, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		v := sum / float64(channels)
		if v < 0 {
			out[i] = float32(v / 32768)
		} else {
			out[i] = float32(v / 32767)
		}
	}
	return out
}
