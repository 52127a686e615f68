// ABOUTME: Timestamp-aware playback engine
// ABOUTME: Drains the chunk buffer and paces device writes off the synced clock
package playback

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-player-go/internal/chunkbuf"
	"github.com/Sendspin/sendspin-player-go/internal/state"
	"github.com/Sendspin/sendspin-player-go/internal/timesync"
	"github.com/Sendspin/sendspin-player-go/pkg/audio"
	"github.com/Sendspin/sendspin-player-go/pkg/audio/output"
)

const (
	// pollInterval bounds empty-buffer sleeps so stop requests are
	// serviced promptly.
	pollInterval = 10 * time.Millisecond

	// aheadThresholdMicros: chunks further ahead than this are slept on.
	aheadThresholdMicros = 100_000

	// maxSleepMicros caps a single pacing sleep.
	maxSleepMicros = 500_000

	// safetyMargin is shaved off pacing sleeps to avoid overshooting.
	safetyMargin = 5 * time.Millisecond

	// lateDropMicros: chunks older than this are dropped unplayed.
	lateDropMicros = 1_000_000

	// fastForwardMicros: startup backlog older than this is discarded.
	fastForwardMicros = 500_000

	// DefaultPrebufferTimeout bounds the initial buffering wait.
	DefaultPrebufferTimeout = 5 * time.Second
)

// Stats tracks playback counters.
type Stats struct {
	Played      int64
	Dropped     int64
	FastForward int64
	WriteErrors int64
}

// Engine drains the chunk buffer and writes PCM to the output device,
// pacing each write against the synchronized clock. Chunks play
// strictly in arrival order; timestamps only pace and drop.
type Engine struct {
	device           output.Device
	buffer           *chunkbuf.Buffer
	clock            *timesync.Synchronizer
	store            *state.Store
	now              timesync.NowMicros
	prebufferTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	stats   Stats
}

// New creates an idle playback engine.
func New(device output.Device, buffer *chunkbuf.Buffer, clock *timesync.Synchronizer, store *state.Store) *Engine {
	return &Engine{
		device:           device,
		buffer:           buffer,
		clock:            clock,
		store:            store,
		now:              timesync.WallMicros,
		prebufferTimeout: DefaultPrebufferTimeout,
	}
}

// SetNow overrides the time source. Intended for tests.
func (e *Engine) SetNow(now timesync.NowMicros) { e.now = now }

// SetPrebufferTimeout overrides the initial buffering wait bound.
func (e *Engine) SetPrebufferTimeout(d time.Duration) { e.prebufferTimeout = d }

// Start configures the output device for the stream format and launches
// the playback loop. A device failure is fatal to this stream attempt
// only; the engine stays idle awaiting the next stream start.
func (e *Engine) Start(format audio.Format) error {
	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.device.Open(format); err != nil {
		return fmt.Errorf("open output device: %w", err)
	}

	deviceBuffer := e.device.BufferSize()
	latencyMicros := format.Duration(deviceBuffer).Microseconds()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true

	e.store.Update(func(s *state.Snapshot) { s.StreamActive = true })

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, deviceBuffer, latencyMicros)
	}()

	log.Printf("Playback started: %s %dHz %dch %dbit, device buffer %d bytes",
		format.Codec, format.SampleRate, format.Channels, format.BitDepth, deviceBuffer)
	return nil
}

// Stop cancels the playback loop and stops the device. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	if err := e.device.Stop(); err != nil {
		log.Printf("Device stop error: %v", err)
	}
	e.store.Update(func(s *state.Snapshot) {
		s.StreamActive = false
		s.BufferHealth = 0
	})
}

// Close stops playback and releases the device.
func (e *Engine) Close() {
	e.Stop()
	if err := e.device.Close(); err != nil {
		log.Printf("Device close error: %v", err)
	}
}

// Stats returns a snapshot of the playback counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// run is the playback loop: prebuffer, fast-forward, then steady state.
func (e *Engine) run(ctx context.Context, deviceBuffer int, latencyMicros int64) {
	e.prebuffer(ctx, deviceBuffer)
	e.fastForward()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk, ok := e.buffer.Read()
		if !ok {
			if !sleepCtx(ctx, pollInterval) {
				return
			}
			continue
		}

		e.store.Update(func(s *state.Snapshot) { s.BufferHealth = e.buffer.UsagePercent() })

		if e.clock.Synced() {
			target := e.clock.DelayUntil(chunk.Timestamp-latencyMicros, e.now)

			switch {
			case target > aheadThresholdMicros:
				sleep := target
				if sleep > maxSleepMicros {
					sleep = maxSleepMicros
				}
				d := time.Duration(sleep)*time.Microsecond - safetyMargin
				if !sleepCtx(ctx, d) {
					return
				}
			case target < -lateDropMicros:
				e.countDrop(target)
				continue
			}
		}

		if err := e.device.Write(chunk.PCM); err != nil {
			log.Printf("Device write error: %v", err)
			e.mu.Lock()
			e.stats.WriteErrors++
			e.mu.Unlock()
			continue
		}

		e.mu.Lock()
		e.stats.Played++
		e.mu.Unlock()
	}
}

// prebuffer waits, bounded by the configured timeout, until the buffer
// holds at least one device-buffer's worth of bytes.
func (e *Engine) prebuffer(ctx context.Context, deviceBuffer int) {
	deadline := time.Now().Add(e.prebufferTimeout)

	for e.buffer.Size() < deviceBuffer {
		if time.Now().After(deadline) {
			log.Printf("Prebuffer timeout: %d of %d bytes buffered, proceeding anyway",
				e.buffer.Size(), deviceBuffer)
			return
		}
		if !sleepCtx(ctx, pollInterval) {
			return
		}
	}
}

// fastForward discards backlog accumulated during startup latency:
// chunks whose target play time is already well in the past.
func (e *Engine) fastForward() {
	if !e.clock.Synced() {
		return
	}

	skipped := 0
	for {
		chunk, ok := e.buffer.Peek()
		if !ok {
			break
		}
		if e.clock.DelayUntil(chunk.Timestamp, e.now) >= -fastForwardMicros {
			break
		}
		e.buffer.Read()
		skipped++
	}

	if skipped > 0 {
		e.mu.Lock()
		e.stats.FastForward += int64(skipped)
		e.mu.Unlock()
		log.Printf("Fast-forwarded past %d stale chunks at stream start", skipped)
	}
}

// countDrop records a late chunk, logging the first few.
func (e *Engine) countDrop(target int64) {
	e.mu.Lock()
	e.stats.Dropped++
	n := e.stats.Dropped
	e.mu.Unlock()

	if n <= 3 || n%100 == 0 {
		log.Printf("Dropped late chunk #%d (%dµs past due)", n, -target)
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
