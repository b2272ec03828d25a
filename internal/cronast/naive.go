package cronast

import "time"

// maxYearHorizon bounds the search for a next match when the crontab has no
// explicit year field, so a pathological expression (e.g. Feb 30) fails fast
// instead of spinning forever.
const maxYearHorizon = 8

// NextNaive returns the first naive instant strictly after from (truncated
// to whole seconds) that satisfies the AST,
// ignoring time.Location entirely: from is treated as a wall-clock reading,
// and the result is a wall-clock reading in the same sense. Callers localize
// the result to a real zone afterward (see ToNaive/Relocalize).
//
// Returns ok=false if no match exists within the search horizon (an
// explicit year field entirely in the past, or exhausted otherwise).
func (a *AST) NextNaive(from time.Time) (time.Time, bool) {
	from = time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), from.Minute(), from.Second(), 0, time.UTC)

	t := from
	if a.HasSeconds {
		t = t.Add(time.Second)
	} else {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
		if !t.After(from) {
			t = t.Add(time.Minute)
		}
	}

	yearLimit := t.Year() + maxYearHorizon
	if maxY, ok := a.year.maxYear(); ok {
		yearLimit = maxY
	}

	for attempts := 0; attempts < 1_000_000; attempts++ {
		if t.Year() > yearLimit {
			return time.Time{}, false
		}

		if !a.year.match(t.Year()) {
			nextYear, ok := a.year.nextYearAtLeast(t.Year() + 1)
			if !ok {
				return time.Time{}, false
			}
			t = time.Date(nextYear, 1, 1, 0, 0, 0, 0, time.UTC)
			continue
		}

		if !a.month.match(int(t.Month())) {
			t = firstOfNextMonth(t)
			continue
		}

		if !a.dayMatches(t.Day(), int(t.Weekday())) {
			t = startOfNextDay(t)
			continue
		}

		if !a.hour.match(t.Hour()) {
			t = startOfNextHour(t)
			continue
		}

		if !a.minute.match(t.Minute()) {
			t = startOfNextMinute(t)
			continue
		}

		if a.HasSeconds && !a.second.match(t.Second()) {
			t = t.Add(time.Second)
			continue
		}

		return t, true
	}
	return time.Time{}, false
}

func firstOfNextMonth(t time.Time) time.Time {
	year, month := t.Year(), t.Month()
	month++
	if month > 12 {
		month = 1
		year++
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func startOfNextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func startOfNextHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Add(time.Hour)
}

func startOfNextMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC).Add(time.Minute)
}

// ToNaive strips a zoned instant down to a wall-clock reading, discarding
// its location. The reverse operation is Relocalize.
func ToNaive(zoned time.Time) time.Time {
	return time.Date(zoned.Year(), zoned.Month(), zoned.Day(), zoned.Hour(), zoned.Minute(), zoned.Second(), zoned.Nanosecond(), time.UTC)
}

// RelocalizeOutcome classifies how a naive wall-clock reading maps back onto
// a real zone's timeline.
type RelocalizeOutcome int

const (
	// Unambiguous: the naive reading names exactly one real instant.
	Unambiguous RelocalizeOutcome = iota
	// Ambiguous: the naive reading names two real instants (a fall-back
	// repeats a wall-clock hour). Relocalize resolves this by picking the
	// later-UTC (second) occurrence, per policy.
	Ambiguous
	// Gap: the naive reading falls inside a spring-forward gap and names no
	// real instant at all.
	Gap
)

// Relocalize maps a naive wall-clock reading onto loc, classifying the
// result as Unambiguous, Ambiguous (picks the second, later-UTC occurrence),
// or Gap (returns the gap boundaries so the caller can apply skip/adjust).
//
// Go's time.Date silently normalizes gap and ambiguous inputs according to
// zoneinfo transition rules without reporting which case occurred, so the
// classification here probes around the naive instant by fixed offsets to
// detect the transition instead of trusting time.Date's own choice.
func Relocalize(naive time.Time, loc *time.Location) (resolved time.Time, outcome RelocalizeOutcome, gapStart, gapEnd time.Time) {
	local := time.Date(naive.Year(), naive.Month(), naive.Day(), naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(), loc)

	// If the wall-clock fields Go reports back for `local` don't match what
	// we asked for, `local` landed inside a spring-forward gap: time.Date
	// silently shifted it forward by the gap width.
	if local.Hour() != naive.Hour() || local.Minute() != naive.Minute() || local.Day() != naive.Day() {
		return findGap(naive, loc)
	}

	// Probe one hour before and after in real (UTC) time to see whether a
	// second local reading of the same wall clock exists (fall-back).
	before := local.Add(-time.Hour)
	after := local.Add(time.Hour)
	_, beforeOffset := before.Zone()
	_, afterOffset := after.Zone()
	_, atOffset := local.Zone()

	if beforeOffset != atOffset || afterOffset != atOffset {
		// A transition occurred within the last/next hour; check both
		// candidate UTC instants that could produce this wall-clock reading.
		if alt, ok := findAmbiguousAlternate(naive, loc, local); ok {
			// Pick the later-UTC (second chronological) occurrence.
			if alt.After(local) {
				return alt, Ambiguous, time.Time{}, time.Time{}
			}
			return local, Ambiguous, time.Time{}, time.Time{}
		}
	}

	return local, Unambiguous, time.Time{}, time.Time{}
}

// findGap locates the spring-forward gap a naive reading fell into, by
// scanning outward in one-minute steps until wall-clock time resumes
// matching what we're constructing. The gap holds no real instant, so both
// returned bounds are the same transition instant: the first instant after
// the last valid wall-clock minute before the gap.
func findGap(naive time.Time, loc *time.Location) (time.Time, RelocalizeOutcome, time.Time, time.Time) {
	// Binary-search-free linear scan backward from naive to find the last
	// naive minute before the gap, and forward to find the first after.
	step := time.Minute
	before := naive
	for i := 0; i < 24*60; i++ {
		before = before.Add(-step)
		probe := time.Date(before.Year(), before.Month(), before.Day(), before.Hour(), before.Minute(), 0, 0, loc)
		if probe.Hour() == before.Hour() && probe.Minute() == before.Minute() {
			break
		}
	}
	after := naive
	for i := 0; i < 24*60; i++ {
		after = after.Add(step)
		probe := time.Date(after.Year(), after.Month(), after.Day(), after.Hour(), after.Minute(), 0, 0, loc)
		if probe.Hour() == after.Hour() && probe.Minute() == after.Minute() {
			break
		}
	}
	gapStart := time.Date(before.Year(), before.Month(), before.Day(), before.Hour(), before.Minute(), 0, 0, loc).Add(step)
	gapEnd := time.Date(after.Year(), after.Month(), after.Day(), after.Hour(), after.Minute(), 0, 0, loc)
	return time.Time{}, Gap, gapStart, gapEnd
}

// findAmbiguousAlternate looks for a second UTC instant, distinct from
// `local`, whose wall-clock reading in loc also equals `naive`.
func findAmbiguousAlternate(naive time.Time, loc *time.Location, local time.Time) (time.Time, bool) {
	for _, delta := range []time.Duration{-2 * time.Hour, -time.Hour, time.Hour, 2 * time.Hour} {
		candidate := local.Add(delta)
		if candidate.Year() == naive.Year() && candidate.Month() == naive.Month() && candidate.Day() == naive.Day() &&
			candidate.Hour() == naive.Hour() && candidate.Minute() == naive.Minute() && candidate.Second() == naive.Second() &&
			!candidate.Equal(local) {
			return candidate, true
		}
	}
	return time.Time{}, false
}
