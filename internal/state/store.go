// ABOUTME: Observable player state as atomically-swapped immutable snapshots
// ABOUTME: Written by the session and playback engine, read by the host layer
package state

import (
	"sync"
	"sync/atomic"
)

// ConnState enumerates the connection lifecycle.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Handshaking
	SyncingClock
	Connected
	Streaming
	Error
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case SyncingClock:
		return "syncing_clock"
	case Connected:
		return "connected"
	case Streaming:
		return "streaming"
	case Error:
		return "error"
	}
	return "unknown"
}

// Snapshot is an immutable view of the player state. Readers always see
// a complete snapshot; partial updates are impossible by construction.
type Snapshot struct {
	Connection   ConnState
	Volume       int // 0-100
	Muted        bool
	BufferHealth int // buffered bytes as percent of capacity
	StreamActive bool
	ErrorMessage string
}

// Store holds the current snapshot and fans out changes to subscribers.
type Store struct {
	current atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs []chan Snapshot
}

// NewStore creates a store in the disconnected state with full volume.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{Connection: Disconnected, Volume: 100})
	return s
}

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	return *s.current.Load()
}

// Update applies fn to a copy of the current snapshot and publishes the
// result. fn must not block.
func (s *Store) Update(fn func(*Snapshot)) Snapshot {
	s.mu.Lock()
	next := *s.current.Load()
	fn(&next)
	s.current.Store(&next)
	subs := s.subs
	s.mu.Unlock()

	for _, ch := range subs {
		// Non-blocking: a slow subscriber misses intermediate snapshots,
		// never stalls the writer.
		select {
		case ch <- next:
		default:
		}
	}
	return next
}

// Subscribe returns a channel receiving snapshot updates. The channel
// is buffered; only the latest updates matter to consumers.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}
