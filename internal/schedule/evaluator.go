package schedule

import (
	"errors"
	"fmt"
	"time"

	"gosched/internal/cronast"
	"gosched/internal/job"
	"gosched/internal/timescale"
)

// ErrNoFutureMatch is returned when a cron schedule (typically an extended
// crontab with an explicit year field) has no remaining match.
var ErrNoFutureMatch = errors.New("schedule: no future match for cron")

// ErrBadTimezone wraps a time.LoadLocation failure encountered while
// evaluating a cron schedule.
var ErrBadTimezone = errors.New("schedule: bad timezone")

// Params carries the pieces of a job's configuration the evaluator needs,
// gathered from job.Options and job.TestOptions by the caller (normally
// internal/activity) so this package stays independent of the exact shape
// those two option records take.
type Params struct {
	Timezone                string
	NonexistentTimeStrategy job.NonexistentTimeStrategy
	Clock                   timescale.Clock
}

// Result is the outcome of one NextFire evaluation.
type Result struct {
	// NextInstant is the logical scheduled instant of the next fire.
	NextInstant time.Time
	// QuantizedAt is the wall-clock projection of when the armed timer is
	// expected to fire: the evaluation-time "now" plus RealDelayMS.
	QuantizedAt time.Time
	// RealDelayMS is the number of real milliseconds to wait before firing,
	// already divided by the clock's speedup and clamped to >= 0.
	RealDelayMS int64
}

// NextFire computes the next fire instant and the real delay to wait for it.
// A delay schedule advances from the logical instant `from` (the previous
// scheduledAt, or the activity's start time on the first call); a cron
// schedule ignores `from` and searches from the clock's Now in p.Timezone.
func NextFire(from time.Time, sched job.Schedule, p Params) (Result, error) {
	clock := p.Clock
	if clock == nil {
		clock = timescale.Real()
	}

	switch s := sched.(type) {
	case job.Delay:
		return nextDelayFire(from, s, clock)
	case job.Cron:
		return nextCronFire(s.AST, p.Timezone, p.NonexistentTimeStrategy, clock)
	default:
		return Result{}, fmt.Errorf("schedule: unsupported schedule type %T", sched)
	}
}

func nextDelayFire(from time.Time, d job.Delay, clock timescale.Clock) (Result, error) {
	rawMS, err := ToMillis(d.Value, d.Unit)
	if err != nil {
		return Result{}, err
	}
	nextInstant := from.Add(time.Duration(rawMS) * time.Millisecond)

	speedup := clock.Speedup()
	if speedup <= 0 {
		speedup = 1
	}
	realDelayMS := roundDiv(rawMS, speedup)
	if realDelayMS < 0 {
		realDelayMS = 0
	}

	now, err := clock.Now("Etc/UTC")
	if err != nil {
		now = time.Now().UTC()
	}
	return Result{
		NextInstant: nextInstant,
		QuantizedAt: now.Add(time.Duration(realDelayMS) * time.Millisecond),
		RealDelayMS: realDelayMS,
	}, nil
}

func nextCronFire(ast *cronast.AST, tz string, strategy job.NonexistentTimeStrategy, clock timescale.Clock) (Result, error) {
	if tz == "" {
		tz = "Etc/UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadTimezone, err)
	}

	now, err := clock.Now(tz)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadTimezone, err)
	}

	nextInstant, err := resolveCronNext(ast, now, loc, strategy)
	if err != nil {
		return Result{}, err
	}

	speedup := clock.Speedup()
	if speedup <= 0 {
		speedup = 1
	}
	rawMS := nextInstant.Sub(now).Milliseconds()
	if rawMS < 0 {
		rawMS = 0
	}
	realDelayMS := roundDiv(rawMS, speedup)
	if realDelayMS < 0 {
		realDelayMS = 0
	}

	return Result{
		NextInstant: nextInstant,
		QuantizedAt: now.Add(time.Duration(realDelayMS) * time.Millisecond),
		RealDelayMS: realDelayMS,
	}, nil
}

// roundDiv divides ms by speedup, rounding to the nearest integer.
func roundDiv(ms int64, speedup float64) int64 {
	if speedup == 1 {
		return ms
	}
	return int64((float64(ms)/speedup + 0.5))
}
