package audio

import "time"

// AudioFrame represents a single frame of audio data flowing through the
// pipeline: captured from the microphone, resampled by the converter, and
// transmitted to or received from the live backend.
type AudioFrame struct {
	// PCM audio data, little-endian int16 samples.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for backend input, 24000 for synthesised output).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo capture devices.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame, derived from its
// sample count, rate, and channel count. Returns zero for malformed frames.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
