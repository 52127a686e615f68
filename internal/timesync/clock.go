// ABOUTME: Clock synchronization against the controller clock
// ABOUTME: Median-of-samples offset estimation over NTP-style round trips
package timesync

import (
	"log"
	"sort"
	"sync"
	"time"
)

const (
	// maxSamples bounds the offset history; oldest samples are evicted.
	maxSamples = 10

	// minSamplesForSync is the sample count at which the clock reports synced.
	minSamplesForSync = 3

	// BurstCount and BurstInterval define the post-handshake sync burst.
	BurstCount    = 5
	BurstInterval = 50 * time.Millisecond

	// SteadyInterval is the re-sync cadence after the burst.
	SteadyInterval = 30 * time.Second
)

// NowMicros returns local monotonic-ish time in microseconds.
// Injected so tests can drive the clock deterministically.
type NowMicros func() int64

// WallMicros is the default local time source.
func WallMicros() int64 { return time.Now().UnixMicro() }

// Synchronizer maintains serverTime = localTime + offset from sampled
// round trips. The published offset is the median of the retained
// samples, which bounds the influence of any single outlier. Safe for a
// concurrent reader (playback loop) while the sync scheduler adds samples.
type Synchronizer struct {
	mu      sync.RWMutex
	samples []int64 // FIFO, newest last
	offset  int64   // median of samples
	synced  bool    // monotone until Reset
}

// New creates an unsynced synchronizer.
func New() *Synchronizer {
	return &Synchronizer{samples: make([]int64, 0, maxSamples)}
}

// AddSample folds one completed round trip into the offset estimate.
// t0 = local send, t1 = remote receive, t2 = remote send, t3 = local receive,
// all in microseconds.
func (s *Synchronizer) AddSample(t0, t1, t2, t3 int64) {
	roundTrip := (t3 - t0) - (t2 - t1)
	oneWay := roundTrip / 2
	sample := t2 + oneWay - t3 // estimated remote now minus local now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)
	if len(s.samples) > maxSamples {
		s.samples = s.samples[1:]
	}
	s.offset = median(s.samples)
	if !s.synced && len(s.samples) >= minSamplesForSync {
		s.synced = true
		log.Printf("Clock synced: offset=%dµs over %d samples (rtt=%dµs)",
			s.offset, len(s.samples), roundTrip)
	}
}

// Offset returns the current median offset in microseconds.
func (s *Synchronizer) Offset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Synced reports whether enough samples have been collected. Once true
// it stays true until Reset.
func (s *Synchronizer) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// SampleCount returns the retained sample count.
func (s *Synchronizer) SampleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Reset clears the sample history and the synced flag. Called on
// session teardown.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = s.samples[:0]
	s.offset = 0
	s.synced = false
}

// ServerToLocal converts a controller timestamp to local microseconds.
func (s *Synchronizer) ServerToLocal(ts int64) int64 {
	return ts - s.Offset()
}

// LocalToServer converts a local timestamp to controller microseconds.
func (s *Synchronizer) LocalToServer(ts int64) int64 {
	return ts + s.Offset()
}

// DelayUntil returns the microseconds from now until the given
// controller timestamp should occur locally. Negative means past due.
func (s *Synchronizer) DelayUntil(serverTs int64, now NowMicros) int64 {
	return s.ServerToLocal(serverTs) - now()
}

// median returns the median of values; for even counts, the lower-middle
// average. values must be non-empty.
func median(values []int64) int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
