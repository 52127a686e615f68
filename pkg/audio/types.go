// ABOUTME: Core audio format types shared across packages
// ABOUTME: Defines stream format and PCM byte-rate helpers
package audio

import "time"

// Format describes a negotiated stream format.
// CodecHeader carries decoded codec initialization bytes when the
// controller supplies them (nil for raw PCM).
type Format struct {
	Codec       string
	SampleRate  int
	Channels    int
	BitDepth    int
	CodecHeader []byte
}

// BytesPerSecond returns the PCM byte rate for this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * (f.BitDepth / 8)
}

// BytesForDuration returns the PCM byte count covering d at this format.
func (f Format) BytesForDuration(d time.Duration) int {
	return int(int64(f.BytesPerSecond()) * d.Microseconds() / 1_000_000)
}

// Duration returns the wall time covered by n PCM bytes at this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}
