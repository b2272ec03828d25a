package schedule

import (
	"time"

	"gosched/internal/cronast"
	"gosched/internal/job"
)

// resolveCronNext finds the next real instant an AST matches strictly after
// `now` (in loc), applying the configured DST-gap strategy when the naive
// next match falls inside a spring-forward gap. Ambiguous fall-back
// instants always resolve to the second (later-UTC) occurrence.
func resolveCronNext(ast *cronast.AST, now time.Time, loc *time.Location, strategy job.NonexistentTimeStrategy) (time.Time, error) {
	naiveNow := cronast.ToNaive(now)

	naiveNext, ok := ast.NextNaive(naiveNow)
	if !ok {
		return time.Time{}, ErrNoFutureMatch
	}

	resolved, outcome, gapStart, gapEnd := cronast.Relocalize(naiveNext, loc)
	switch outcome {
	case cronast.Unambiguous, cronast.Ambiguous:
		return resolved, nil
	case cronast.Gap:
		return resolveGap(ast, naiveNext, gapStart, gapEnd, loc, strategy)
	default:
		return resolved, nil
	}
}

// resolveGap applies the skip or adjust strategy to a naive instant that
// fell inside a spring-forward gap; gapStart and gapEnd are both the
// transition instant (see cronast.Relocalize), and only gapEnd is used.
func resolveGap(ast *cronast.AST, naiveNext time.Time, gapStart, gapEnd time.Time, loc *time.Location, strategy job.NonexistentTimeStrategy) (time.Time, error) {
	if strategy == job.StrategyAdjust {
		return adjustIntoGapEnd(naiveNext, gapEnd, loc), nil
	}

	// skip: recompute from just after the gap closes, in naive terms.
	justAfterGap := cronast.ToNaive(gapEnd)
	nextNaive, ok := ast.NextNaive(justAfterGap.Add(-time.Nanosecond))
	if !ok {
		return time.Time{}, ErrNoFutureMatch
	}
	resolved, outcome, gapStart2, gapEnd2 := cronast.Relocalize(nextNaive, loc)
	if outcome == cronast.Gap {
		// The next match fell into a gap as well: recurse with the new gap
		// boundaries. Each step searches from past the previous gap, so the
		// recursion ends at a match outside any gap or when NextNaive's
		// search horizon is exhausted (ErrNoFutureMatch).
		return resolveGap(ast, nextNaive, gapStart2, gapEnd2, loc, strategy)
	}
	return resolved, nil
}

// adjustIntoGapEnd synthesizes an instant at the same offset from midnight
// as the nonexistent local wall-clock time: midnight of that local date is
// always valid (transitions never land exactly at 00:00), so adding the
// naive time-of-day as a real duration lands past the gap automatically —
// the hour skipped by the transition is absorbed into the real-time Add.
func adjustIntoGapEnd(naiveNext time.Time, gapEnd time.Time, loc *time.Location) time.Time {
	midnightNaive := time.Date(naiveNext.Year(), naiveNext.Month(), naiveNext.Day(), 0, 0, 0, 0, time.UTC)
	offset := naiveNext.Sub(midnightNaive)

	midnightLocal := time.Date(naiveNext.Year(), naiveNext.Month(), naiveNext.Day(), 0, 0, 0, 0, loc)
	return midnightLocal.Add(offset)
}
