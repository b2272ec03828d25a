package schedule

import (
	"testing"
	"time"

	"gosched/internal/cronast"
	"gosched/internal/job"
	"gosched/internal/timescale"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

// TestSpringForwardSkip covers §8.2: cron "30 2 * * *" on 2019-03-10 with
// NonexistentTimeStrategy=skip should land on 2019-03-11 02:30 CDT.
func TestSpringForwardSkip(t *testing.T) {
	t.Parallel()
	loc := chicago(t)
	ast, err := cronast.Parse5("30 2 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Just before the transition, local time.
	now := time.Date(2019, 3, 10, 1, 0, 0, 0, loc)
	clock := timescale.Fixed(now, 1)

	res, err := NextFire(time.Time{}, job.Cron{AST: ast}, Params{
		Timezone:                "America/Chicago",
		NonexistentTimeStrategy: job.StrategySkip,
		Clock:                   clock,
	})
	if err != nil {
		t.Fatalf("NextFire: %v", err)
	}
	want := time.Date(2019, 3, 11, 2, 30, 0, 0, loc)
	if !res.NextInstant.Equal(want) {
		t.Fatalf("got %v, want %v (skip should defer to the next day's 02:30)", res.NextInstant, want)
	}
}

// TestSpringForwardAdjust covers §8.2: the same cron with adjust should
// land on 2019-03-10 03:30 CDT, preserving the 2.5h midnight offset.
func TestSpringForwardAdjust(t *testing.T) {
	t.Parallel()
	loc := chicago(t)
	ast, err := cronast.Parse5("30 2 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	now := time.Date(2019, 3, 10, 1, 0, 0, 0, loc)
	clock := timescale.Fixed(now, 1)

	res, err := NextFire(time.Time{}, job.Cron{AST: ast}, Params{
		Timezone:                "America/Chicago",
		NonexistentTimeStrategy: job.StrategyAdjust,
		Clock:                   clock,
	})
	if err != nil {
		t.Fatalf("NextFire: %v", err)
	}
	want := time.Date(2019, 3, 10, 3, 30, 0, 0, loc)
	if !res.NextInstant.Equal(want) {
		t.Fatalf("got %v, want %v (adjust should preserve the midnight offset)", res.NextInstant, want)
	}
}

// TestFallBackAmbiguousPicksSecondOccurrence covers §8.2: a fall-back
// ambiguous instant resolves to the second (later-UTC) occurrence.
func TestFallBackAmbiguousPicksSecondOccurrence(t *testing.T) {
	t.Parallel()
	loc := chicago(t)
	ast, err := cronast.Parse5("30 1 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 2019-11-03 01:00 CDT, just before 01:30 occurs for the first time.
	now := time.Date(2019, 11, 3, 1, 0, 0, 0, loc)
	clock := timescale.Fixed(now, 1)

	res, err := NextFire(time.Time{}, job.Cron{AST: ast}, Params{
		Timezone: "America/Chicago",
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("NextFire: %v", err)
	}

	firstOccurrence := time.Date(2019, 11, 3, 1, 30, 0, 0, loc)
	// The second occurrence is one hour later in real (UTC) time, though
	// both print as "01:30" local.
	if !res.NextInstant.After(firstOccurrence) {
		t.Fatalf("expected the later-UTC occurrence, got %v (not after %v)", res.NextInstant, firstOccurrence)
	}
	if res.NextInstant.Hour() != 1 || res.NextInstant.Minute() != 30 {
		t.Fatalf("resolved wall clock should still read 01:30, got %v", res.NextInstant)
	}
}
