// ABOUTME: Binary audio frame encoding and decoding
// ABOUTME: Frame layout: tag byte, big-endian µs timestamp, raw PCM payload
package protocol

import "encoding/binary"

// Binary frame type tags. Only audio frames are consumed by the player;
// artwork and visualizer frames belong to other roles.
const (
	TagAudio          byte = 4
	TagArtworkFirst   byte = 8
	TagArtworkLast    byte = 11
	TagVisualizer     byte = 16
	binaryHeaderBytes      = 9
)

// AudioChunk is one timestamped unit of raw PCM.
// Timestamp is in controller-clock microseconds.
type AudioChunk struct {
	Timestamp int64
	PCM       []byte
}

// Size returns the payload byte count.
func (c AudioChunk) Size() int { return len(c.PCM) }

// DecodeAudioChunk decodes a binary frame into an audio chunk. Frames
// shorter than the header or carrying a non-audio tag decode to nothing.
func DecodeAudioChunk(data []byte) (AudioChunk, bool) {
	if len(data) < binaryHeaderBytes {
		return AudioChunk{}, false
	}
	if data[0] != TagAudio {
		return AudioChunk{}, false
	}
	return AudioChunk{
		Timestamp: int64(binary.BigEndian.Uint64(data[1:9])),
		PCM:       data[9:],
	}, true
}

// EncodeAudioChunk builds a binary audio frame from a timestamp and PCM.
func EncodeAudioChunk(timestamp int64, pcm []byte) []byte {
	frame := make([]byte, binaryHeaderBytes+len(pcm))
	frame[0] = TagAudio
	binary.BigEndian.PutUint64(frame[1:9], uint64(timestamp))
	copy(frame[9:], pcm)
	return frame
}
