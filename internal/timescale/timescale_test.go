package timescale

import (
	"testing"
	"time"
)

func TestRealSpeedupIsOne(t *testing.T) {
	t.Parallel()
	if got := Real().Speedup(); got != 1 {
		t.Fatalf("Real().Speedup() = %v, want 1", got)
	}
}

func TestRealNowReflectsRequestedZone(t *testing.T) {
	t.Parallel()
	now, err := Real().Now("Etc/UTC")
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if now.Location().String() != "Etc/UTC" {
		t.Fatalf("Now() location = %v, want Etc/UTC", now.Location())
	}
}

func TestRealNowRejectsBadZone(t *testing.T) {
	t.Parallel()
	if _, err := Real().Now("Not/AZone"); err == nil {
		t.Fatal("expected an error for an unknown IANA zone")
	}
}

func TestFixedAlwaysReturnsTheSameInstant(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := Fixed(at, 5)
	for i := 0; i < 3; i++ {
		got, err := clock.Now("Etc/UTC")
		if err != nil {
			t.Fatalf("Now: %v", err)
		}
		if !got.Equal(at) {
			t.Fatalf("Now() = %v, want %v", got, at)
		}
	}
	if clock.Speedup() != 5 {
		t.Fatalf("Speedup() = %v, want 5", clock.Speedup())
	}
}

func TestFixedCoercesNonPositiveSpeedup(t *testing.T) {
	t.Parallel()
	clock := Fixed(time.Now(), -1)
	if clock.Speedup() != 1 {
		t.Fatalf("Speedup() = %v, want 1", clock.Speedup())
	}
}

// TestVirtualAdvancesFromStartAtSpeedup covers the NewVirtual(start, speedup)
// contract: Now() reports start plus speedup times the real time elapsed
// since construction, not a plain passthrough to time.Now().
func TestVirtualAdvancesFromStartAtSpeedup(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewVirtual(start, 1000)

	time.Sleep(10 * time.Millisecond)
	got, err := clock.Now("Etc/UTC")
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if !got.After(start) {
		t.Fatalf("Now() = %v, want strictly after start %v", got, start)
	}
	// 10ms real * 1000 speedup should put us at least several seconds past
	// start, with generous slack for scheduling jitter.
	if got.Sub(start) < time.Second {
		t.Fatalf("Now() only advanced %v past start, want at least 1s under 1000x speedup", got.Sub(start))
	}
}

func TestVirtualCoercesZeroStartAndNonPositiveSpeedup(t *testing.T) {
	t.Parallel()
	before := time.Now()
	clock := NewVirtual(time.Time{}, -5)
	if clock.Speedup() != 1 {
		t.Fatalf("Speedup() = %v, want 1", clock.Speedup())
	}
	got, err := clock.Now("Etc/UTC")
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if got.Before(before) {
		t.Fatalf("Now() = %v, want at or after the coerced start %v", got, before)
	}
}
