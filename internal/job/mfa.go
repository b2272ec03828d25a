package job

import "time"

// SchedExScheduledTime and FledexSchedulerScheduledTime are the two sentinel
// markers an m/f/a argument list may contain; NormalizeMFA substitutes
// either one with the activity's fire instant. Both are accepted so callers
// migrating off either historical name keep working.
const (
	SchedExScheduledTime         = "$sched_ex_scheduled_time"
	FledexSchedulerScheduledTime = "$fledex_scheduler_scheduled_time"
)

// MFA is a module/function/args-style invocation: a function value plus a
// fixed argument list, as opposed to a Go closure captured over its own state.
type MFA struct {
	Fn   func(args ...any) error
	Args []any
}

// NormalizeMFA turns an MFA into a Func1: at fire time, any argument equal
// (by ==) to one of the two sentinel constants is replaced by the fire
// instant before Fn is invoked. Substitution is by equality only; sentinels
// nested inside a slice or struct argument are not touched.
func NormalizeMFA(m MFA) Func1 {
	return func(scheduledAt time.Time) error {
		args := make([]any, len(m.Args))
		for i, a := range m.Args {
			if a == SchedExScheduledTime || a == FledexSchedulerScheduledTime {
				args[i] = scheduledAt
			} else {
				args[i] = a
			}
		}
		return m.Fn(args...)
	}
}
