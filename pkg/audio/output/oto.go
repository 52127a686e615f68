// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams 16-bit PCM through a pipe into a persistent oto player
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-player-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

const (
	// minBufferDuration is the device's minimum buffer granularity.
	minBufferDuration = 10 * time.Millisecond

	// internalBufferFactor sizes the device-side buffer relative to the
	// minimum to absorb scheduling jitter.
	internalBufferFactor = 6
)

// Oto plays PCM through the oto library with software volume control.
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	bufferSize int
	volume     float64
	muted      bool
	ready      bool
}

// NewOto creates an oto-backed output device at full volume.
func NewOto() *Oto {
	return &Oto{volume: 1.0}
}

// Open configures the device for the given stream format.
func (o *Oto) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if format.BitDepth != 16 {
		return fmt.Errorf("oto output supports 16-bit PCM only, got %d-bit", format.BitDepth)
	}

	// oto allows one context per process; a same-format reopen reuses it.
	if o.otoCtx != nil {
		if o.format.SampleRate == format.SampleRate && o.format.Channels == format.Channels {
			o.startPlayerLocked()
			return nil
		}
		return fmt.Errorf("oto cannot reconfigure from %dHz/%dch to %dHz/%dch",
			o.format.SampleRate, o.format.Channels, format.SampleRate, format.Channels)
	}

	minBuffer := format.BytesForDuration(minBufferDuration)

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   minBufferDuration * internalBufferFactor,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.format = format
	o.bufferSize = minBuffer
	o.startPlayerLocked()

	log.Printf("Audio output open: %dHz, %d channels, min buffer %d bytes",
		format.SampleRate, format.Channels, minBuffer)
	return nil
}

// startPlayerLocked builds the pipe and persistent player. Caller holds mu.
func (o *Oto) startPlayerLocked() {
	if o.ready {
		return
	}
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true
}

// Write outputs PCM bytes, applying the current volume and mute state.
// Blocks until the device consumes the data.
func (o *Oto) Write(pcm []byte) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return fmt.Errorf("output not open")
	}
	w := o.pipeWriter
	volume, muted := o.volume, o.muted
	o.mu.Unlock()

	// Scale a copy so the caller's chunk stays immutable.
	out := make([]byte, len(pcm))
	copy(out, pcm)
	scaleInt16LE(out, volume, muted)

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("pipe write: %w", err)
	}
	return nil
}

// BufferSize returns the minimum device buffer in bytes.
func (o *Oto) BufferSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bufferSize
}

// SetVolume sets playback volume, clamped to [0,1].
func (o *Oto) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = clampVolume(v)
}

// SetMuted sets the mute state.
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
}

// Stop halts playback, leaving the context available for the next stream.
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.ready = false
	return nil
}

// Close releases the device.
func (o *Oto) Close() error {
	if err := o.Stop(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
	}
	return nil
}
