package audio

import (
	"encoding/binary"
	"time"
)

const (
	// WireSampleRate is the sample rate of outbound microphone audio
	WireSampleRate = 16000

	// PlaybackSampleRate is the sample rate of inbound agent audio
	PlaybackSampleRate = 24000

	// BlockSamples is the fixed capture block size delivered to the sink
	BlockSamples = 4096
)

// FloatToPCM16 converts mono float32 samples to little-endian 16-bit signed
// PCM. Samples are scaled by 32768 with a symmetric clamp at the int16 range,
// so -1.0 maps to -32768 and 1.0 saturates at 32767.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat converts little-endian 16-bit signed PCM bytes to float32
// samples in [-1, 1], dividing negatives by 32768 and positives by 32767.
// A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

// PCMDuration returns the playback duration of raw mono int16 PCM bytes at
// the given sample rate.
func PCMDuration(numBytes, sampleRate int) time.Duration {
	samples := numBytes / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
