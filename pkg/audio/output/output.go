// ABOUTME: Audio output device abstraction
// ABOUTME: Common interface for playback backends plus volume helpers
package output

import "github.com/Sendspin/sendspin-player-go/pkg/audio"

// Device represents an audio output device. Volume is a [0,1] scalar;
// conversion from the protocol's 0-100 integer scale happens upstream.
type Device interface {
	// Open configures the device for the given stream format. Open may
	// be called again with a new format between streams.
	Open(format audio.Format) error

	// Write outputs raw PCM bytes, blocking until consumed.
	Write(pcm []byte) error

	// BufferSize returns the device's minimum buffer size in bytes for
	// the currently open format. Zero when no format is open.
	BufferSize() int

	// SetVolume sets the playback volume, clamped to [0,1].
	SetVolume(v float64)

	// SetMuted sets the mute state.
	SetMuted(muted bool)

	// Stop halts playback without releasing the device.
	Stop() error

	// Close releases device resources.
	Close() error
}

// clampVolume bounds v to [0,1].
func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scaleInt16LE applies a volume scalar in place to little-endian
// 16-bit PCM. Muted output is silenced outright.
func scaleInt16LE(pcm []byte, volume float64, muted bool) {
	if muted || volume == 0 {
		for i := range pcm {
			pcm[i] = 0
		}
		return
	}
	if volume >= 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		scaled := int32(float64(sample) * volume)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		pcm[i] = byte(uint16(scaled))
		pcm[i+1] = byte(uint16(scaled) >> 8)
	}
}
