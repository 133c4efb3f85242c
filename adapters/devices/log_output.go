package devices

import (
	"time"

	"go.uber.org/zap"

	"github.com/aieducate/livesession/internal/audio"
)

// LogOutput is a speaker stand-in that records what would be rendered. The
// daemon runs headless; real playback hardware is an embedder concern.
type LogOutput struct {
	logger *zap.Logger
}

var _ audio.Output = (*LogOutput)(nil)

func NewLogOutput(logger *zap.Logger) *LogOutput {
	return &LogOutput{logger: logger}
}

// PlayClip implements audio.Output
func (o *LogOutput) PlayClip(samples []float32, rate int) {
	o.logger.Debug("Audio clip",
		zap.Int("samples", len(samples)),
		zap.Int("rate", rate))
}

// PlayStreamAt implements audio.Output
func (o *LogOutput) PlayStreamAt(samples []float32, rate int, start time.Time) {
	o.logger.Debug("Audio stream segment",
		zap.Int("samples", len(samples)),
		zap.Int("rate", rate),
		zap.Time("start", start))
}

// Stop implements audio.Output
func (o *LogOutput) Stop() {
	o.logger.Debug("Audio output stopped")
}
