// ABOUTME: No-op audio output for headless operation and tests
// ABOUTME: Accepts any format and discards written PCM
package output

import (
	"sync"

	"github.com/Sendspin/sendspin-player-go/pkg/audio"
)

// Null is a device that swallows all audio. Useful for headless hosts
// and as a stand-in when no sound hardware is available.
type Null struct {
	mu     sync.Mutex
	format audio.Format
	open   bool
	volume float64
	muted  bool
}

// NewNull creates a null output device.
func NewNull() *Null {
	return &Null{volume: 1.0}
}

func (n *Null) Open(format audio.Format) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.format = format
	n.open = true
	return nil
}

func (n *Null) Write(pcm []byte) error {
	return nil
}

func (n *Null) BufferSize() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open {
		return 0
	}
	return n.format.BytesForDuration(minBufferDuration)
}

func (n *Null) SetVolume(v float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volume = clampVolume(v)
}

func (n *Null) SetMuted(muted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.muted = muted
}

func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
	return nil
}

func (n *Null) Close() error { return n.Stop() }
