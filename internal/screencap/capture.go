package screencap

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	// One frame per second keeps the agent's visual context fresh without
	// flooding the uplink
	frameInterval = time.Second

	// Frames are downscaled so the long edge never exceeds this
	maxLongEdge = 1024

	jpegQuality = 70
)

// FrameSource produces screen frames. Start acquires the underlying capture
// handle; Frame returns the current screen content and io.EOF once the source
// is gone for good (e.g. the user revoked sharing). Close must be idempotent.
type FrameSource interface {
	Start(ctx context.Context) error
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// ImageSender receives the encoded frames. Satisfied by the live client.
type ImageSender interface {
	SendImage(data, mimeType string)
}

// Caster periodically captures the screen, downscales and JPEG-encodes each
// frame, and ships it to the agent. At most one frame per tick is in flight;
// a slow encode simply skips ticks rather than queueing.
type Caster struct {
	logger *zap.Logger
	clk    clock.Clock
	source FrameSource
	sender ImageSender

	mu      sync.Mutex
	sharing bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewCaster(source FrameSource, sender ImageSender, clk clock.Clock, logger *zap.Logger) *Caster {
	return &Caster{
		logger: logger,
		clk:    clk,
		source: source,
		sender: sender,
	}
}

// Sharing reports whether the caster is currently capturing
func (c *Caster) Sharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sharing
}

// Start begins the capture loop. No-op if already sharing. A source that
// fails to start leaves the caster stopped and releases the source.
func (c *Caster) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sharing {
		return nil
	}

	if err := c.source.Start(ctx); err != nil {
		c.source.Close()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.sharing = true

	c.logger.Info("Screen sharing started")
	go c.loop(loopCtx, c.done)
	return nil
}

// Stop ends the capture loop and releases the source. Idempotent.
func (c *Caster) Stop() {
	c.mu.Lock()
	if !c.sharing {
		c.mu.Unlock()
		return
	}
	c.sharing = false
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	cancel()
	c.source.Close()
	<-done
	c.logger.Info("Screen sharing stopped")
}

// Toggle flips the sharing state and reports the new state
func (c *Caster) Toggle(ctx context.Context) (bool, error) {
	if c.Sharing() {
		c.Stop()
		return false, nil
	}
	if err := c.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Caster) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// The first frame goes out immediately so the agent sees the screen as
	// soon as sharing begins
	if !c.captureAndSend(ctx) {
		c.stopFromLoop()
		return
	}

	ticker := c.clk.Ticker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.captureAndSend(ctx) {
				c.stopFromLoop()
				return
			}
		}
	}
}

// captureAndSend grabs one frame and ships it. Returns false when the source
// is exhausted and the loop should end.
func (c *Caster) captureAndSend(ctx context.Context) bool {
	frame, err := c.source.Frame(ctx)
	if err != nil {
		if err == io.EOF {
			c.logger.Info("Frame source ended, stopping screen share")
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		// Transient capture failure: skip this tick
		c.logger.Warn("Failed to capture frame", zap.Error(err))
		return true
	}

	payload, err := encodeFrame(frame)
	if err != nil {
		c.logger.Warn("Failed to encode frame", zap.Error(err))
		return true
	}

	c.sender.SendImage(payload, "image/jpeg")
	return true
}

// stopFromLoop tears down state when the loop ends on its own (source EOF).
// Stop cannot be called here because it waits on the loop's done channel.
func (c *Caster) stopFromLoop() {
	c.mu.Lock()
	if !c.sharing {
		c.mu.Unlock()
		return
	}
	c.sharing = false
	cancel := c.cancel
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	cancel()
	c.source.Close()
}

// encodeFrame downscales the frame so its long edge is at most maxLongEdge
// and returns it as base64 JPEG.
func encodeFrame(frame image.Image) (string, error) {
	frame = downscale(frame)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func downscale(frame image.Image) image.Image {
	bounds := frame.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	long := w
	if h > long {
		long = h
	}
	if long <= maxLongEdge {
		return frame
	}

	scale := float64(maxLongEdge) / float64(long)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, bounds, draw.Over, nil)
	return dst
}
