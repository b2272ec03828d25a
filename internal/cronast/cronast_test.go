package cronast

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, expr string) *AST {
	t.Helper()
	a, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	return a
}

func TestNextNaiveEveryMinute(t *testing.T) {
	t.Parallel()
	a := mustParse(t, "* * * * *")
	from := time.Date(2024, 1, 1, 12, 30, 15, 0, time.UTC)
	got, ok := a.NextNaive(from)
	if !ok {
		t.Fatal("expected a match")
	}
	want := time.Date(2024, 1, 1, 12, 31, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNextNaiveDailyAtHour(t *testing.T) {
	t.Parallel()
	a := mustParse(t, "0 10 * * *")
	from := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	got, ok := a.NextNaive(from)
	if !ok {
		t.Fatal("expected a match")
	}
	want := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNextNaiveWithSecondsAndYear(t *testing.T) {
	t.Parallel()
	a, err := Parse7("0 0 0 1 1 * 2000")
	if err != nil {
		t.Fatalf("Parse7: %v", err)
	}
	from := time.Date(1999, 12, 31, 23, 59, 50, 0, time.UTC)
	got, ok := a.NextNaive(from)
	if !ok {
		t.Fatal("expected a match")
	}
	want := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNextNaiveYearFieldExhausted(t *testing.T) {
	t.Parallel()
	a, err := Parse7("0 0 0 1 1 * 1999")
	if err != nil {
		t.Fatalf("Parse7: %v", err)
	}
	from := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := a.NextNaive(from); ok {
		t.Fatal("expected no match once the only configured year has passed")
	}
}

func TestDomDowOrRule(t *testing.T) {
	t.Parallel()
	// Both restricted: matches the 1st of the month OR any Friday.
	a := mustParse(t, "0 0 1 * 5")
	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC) // Saturday
	got, ok := a.NextNaive(from)
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Weekday() != time.Friday && got.Day() != 1 {
		t.Fatalf("expected next match to be a Friday or the 1st, got %v (%v)", got, got.Weekday())
	}
}

func TestRelocalizeUnambiguous(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	naive := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	resolved, outcome, _, _ := Relocalize(naive, loc)
	if outcome != Unambiguous {
		t.Fatalf("got outcome %v, want Unambiguous", outcome)
	}
	if resolved.Hour() != 9 {
		t.Fatalf("resolved hour = %d, want 9", resolved.Hour())
	}
}

func TestRelocalizeSpringForwardGap(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2024-03-10 02:30 local does not exist in America/Chicago: clocks jump
	// from 01:59:59 to 03:00:00.
	naive := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)
	_, outcome, gapStart, gapEnd := Relocalize(naive, loc)
	if outcome != Gap {
		t.Fatalf("got outcome %v, want Gap", outcome)
	}
	// In real time the gap is empty: both bounds are the transition instant,
	// 03:00 CDT (08:00 UTC).
	transition := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	if !gapStart.Equal(transition) || !gapEnd.Equal(transition) {
		t.Fatalf("gap bounds: start=%v end=%v, want both %v", gapStart, gapEnd, transition)
	}
}

func TestRelocalizeFallBackAmbiguous(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2024-11-03 01:30 local occurs twice in America/Chicago.
	naive := time.Date(2024, 11, 3, 1, 30, 0, 0, time.UTC)
	resolved, outcome, _, _ := Relocalize(naive, loc)
	if outcome != Ambiguous {
		t.Fatalf("got outcome %v, want Ambiguous", outcome)
	}
	if resolved.Hour() != 1 || resolved.Minute() != 30 {
		t.Fatalf("resolved wall clock = %v, want 01:30", resolved)
	}
}

func TestParseInvalidFieldCount(t *testing.T) {
	t.Parallel()
	if _, err := Parse("* * *"); err == nil {
		t.Fatal("expected an error for a malformed crontab")
	}
}

func TestParseStepAndRange(t *testing.T) {
	t.Parallel()
	a := mustParse(t, "*/15 9-17 * * mon-fri")
	if !a.minute.match(0) || !a.minute.match(45) || a.minute.match(1) {
		t.Fatalf("minute step parsing incorrect")
	}
	if !a.hour.match(9) || !a.hour.match(17) || a.hour.match(8) {
		t.Fatalf("hour range parsing incorrect")
	}
}
