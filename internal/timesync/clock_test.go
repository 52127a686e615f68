// ABOUTME: Tests for median-based clock synchronization
// ABOUTME: Covers offset math, outlier resilience, sync monotonicity, reset
package timesync

import "testing"

// addOffsetSample injects a round trip that yields exactly the given
// offset sample with zero RTT.
func addOffsetSample(s *Synchronizer, offset int64) {
	// t0=t3=1000 local, remote receive/send both at 1000+offset:
	// roundTrip = 0, sample = t2 - t3 = offset.
	s.AddSample(1000, 1000+offset, 1000+offset, 1000)
}

func TestOffsetSampleMath(t *testing.T) {
	s := New()

	// Client sends at 1_000_000, server receives at 2_002_000 and replies
	// at 2_002_500 (server clock), client receives at 1_005_000.
	// roundTrip = 5000 - 500 = 4500; oneWay = 2250
	// sample = 2_002_500 + 2250 - 1_005_000 = 999_750
	s.AddSample(1_000_000, 2_002_000, 2_002_500, 1_005_000)

	if got := s.Offset(); got != 999_750 {
		t.Errorf("expected offset 999750, got %d", got)
	}
}

func TestMedianResistsOutlier(t *testing.T) {
	s := New()
	for _, off := range []int64{1000, 1050, 980, 1500, 1010} {
		addOffsetSample(s, off)
	}

	// Median of [980 1000 1010 1050 1500] is 1010; the outlier must not skew it.
	if got := s.Offset(); got != 1010 {
		t.Errorf("expected median offset 1010, got %d", got)
	}
}

func TestSyncedMonotone(t *testing.T) {
	s := New()

	if s.Synced() {
		t.Fatal("fresh synchronizer must not report synced")
	}

	addOffsetSample(s, 100)
	addOffsetSample(s, 110)
	if s.Synced() {
		t.Error("two samples should not be enough")
	}

	addOffsetSample(s, 105)
	if !s.Synced() {
		t.Error("expected synced after three samples")
	}

	// Stays synced while more samples arrive, including garbage ones.
	addOffsetSample(s, 9_000_000)
	if !s.Synced() {
		t.Error("synced must not revert on new samples")
	}
}

func TestSampleHistoryBounded(t *testing.T) {
	s := New()
	for i := 0; i < 25; i++ {
		addOffsetSample(s, int64(i))
	}

	if got := s.SampleCount(); got != 10 {
		t.Errorf("expected 10 retained samples, got %d", got)
	}

	// Only the last 10 samples (15..24) remain; median is (19+20)/2.
	if got := s.Offset(); got != 19 {
		t.Errorf("expected offset 19, got %d", got)
	}
}

func TestReset(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		addOffsetSample(s, 500)
	}
	if !s.Synced() {
		t.Fatal("expected synced before reset")
	}

	s.Reset()

	if s.Synced() {
		t.Error("expected unsynced after reset")
	}
	if s.Offset() != 0 {
		t.Error("expected zero offset after reset")
	}
	if s.SampleCount() != 0 {
		t.Error("expected empty history after reset")
	}
}

func TestConversionRoundTrip(t *testing.T) {
	s := New()
	addOffsetSample(s, 123456)

	for _, ts := range []int64{0, 1, 1_000_000, -500, 1 << 40} {
		if got := s.ServerToLocal(s.LocalToServer(ts)); got != ts {
			t.Errorf("round trip of %d gave %d", ts, got)
		}
	}
}

func TestDelayUntil(t *testing.T) {
	s := New()
	addOffsetSample(s, 1000) // server is 1000µs ahead

	now := func() int64 { return 5_000_000 }

	// Server timestamp 5_101_000 maps to local 5_100_000 → 100ms away.
	if got := s.DelayUntil(5_101_000, now); got != 100_000 {
		t.Errorf("expected delay 100000, got %d", got)
	}

	// Past-due timestamps yield negative delays.
	if got := s.DelayUntil(4_001_000, now); got != -1_000_000 {
		t.Errorf("expected delay -1000000, got %d", got)
	}
}
