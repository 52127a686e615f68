// ABOUTME: Bounded byte-capacity FIFO of timestamped PCM chunks
// ABOUTME: Sole hand-off point between the network receive path and playback
package chunkbuf

import (
	"sync"

	"github.com/Sendspin/sendspin-player-go/pkg/protocol"
)

// DefaultCapacity is the default buffer capacity in bytes.
const DefaultCapacity = 4 * 1024 * 1024

// Stats carries cumulative buffer counters for diagnostics.
type Stats struct {
	ChunksWritten  int64
	ChunksRead     int64
	ChunksRejected int64
	BytesWritten   int64
	BytesRead      int64
}

// Buffer is a bounded FIFO of audio chunks limited by total payload
// bytes. A write that would exceed capacity is rejected outright
// (drop-newest backpressure). Safe for one concurrent writer and one
// concurrent reader.
type Buffer struct {
	mu       sync.Mutex
	chunks   []protocol.AudioChunk
	capacity int
	size     int
	stats    Stats
}

// New creates a buffer with the given byte capacity. A non-positive
// capacity selects DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		chunks:   make([]protocol.AudioChunk, 0, 64),
		capacity: capacity,
	}
}

// Write appends a chunk if it fits. Returns false, with no side
// effects, when the chunk would push total bytes past capacity.
func (b *Buffer) Write(chunk protocol.AudioChunk) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size+chunk.Size() > b.capacity {
		b.stats.ChunksRejected++
		return false
	}

	b.chunks = append(b.chunks, chunk)
	b.size += chunk.Size()
	b.stats.ChunksWritten++
	b.stats.BytesWritten += int64(chunk.Size())
	return true
}

// Read pops the oldest chunk, or returns false when empty.
func (b *Buffer) Read() (protocol.AudioChunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return protocol.AudioChunk{}, false
	}

	chunk := b.chunks[0]
	b.chunks = b.chunks[1:]
	b.size -= chunk.Size()
	b.stats.ChunksRead++
	b.stats.BytesRead += int64(chunk.Size())

	// Reclaim the backing array once fully drained so the slice head
	// does not creep forever.
	if len(b.chunks) == 0 {
		b.chunks = make([]protocol.AudioChunk, 0, 64)
	}
	return chunk, true
}

// Peek returns the oldest chunk without removing it.
func (b *Buffer) Peek() (protocol.AudioChunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return protocol.AudioChunk{}, false
	}
	return b.chunks[0], true
}

// Clear empties the buffer and resets the byte counter. Cumulative
// stats survive; they describe the session, not the current contents.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = make([]protocol.AudioChunk, 0, 64)
	b.size = 0
}

// Size returns the total buffered payload bytes.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Len returns the buffered chunk count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Capacity returns the configured byte capacity.
func (b *Buffer) Capacity() int { return b.capacity }

// UsagePercent returns buffered bytes as a 0-100 percentage of capacity.
func (b *Buffer) UsagePercent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size * 100 / b.capacity
}

// Stats returns a snapshot of the cumulative counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
