package facade

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"gosched/internal/cronast"
	"gosched/internal/job"
)

// ParseCron accepts either a 5-field standard crontab, a robfig/cron/v3
// calendar descriptor (@hourly, @daily, @weekly, @monthly, @yearly, ...), or
// a 7-field extended crontab (second minute hour dom month dow year), and
// always returns a cronast.AST: the DST/naive-time machinery in
// internal/schedule stays in full control of "next match" regardless of
// which syntax produced the AST. "@every <duration>" is rejected here since
// it has no cronast.AST representation; see RunEvery/ParseEvery.
//
// Descriptors and standard crontabs are validated with cron.ParseStandard
// first (the same library the ambient stack already depends on) purely for
// its syntax checking; the resulting cron.Schedule is discarded once
// validation succeeds and cronast.Parse5 takes over for evaluation.
func ParseCron(expr string) (*cronast.AST, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidCron)
	}

	if strings.HasPrefix(trimmed, "@") {
		return parseDescriptor(trimmed)
	}

	fields := strings.Fields(trimmed)
	switch len(fields) {
	case 5:
		if _, err := cron.ParseStandard(trimmed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
		ast, err := cronast.Parse5(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
		return ast, nil
	case 7:
		ast, err := cronast.Parse7(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
		return ast, nil
	default:
		return nil, fmt.Errorf("%w: expected 5 or 7 fields, got %d", ErrInvalidCron, len(fields))
	}
}

// parseDescriptor handles @hourly, @daily, @weekly, @monthly,
// @yearly/@annually, translating each into an equivalent 5-field crontab
// before handing off to cronast so descriptor sugar and literal crontabs
// share one evaluation path. @every N has no calendar representation for
// cronast.AST to match against, so it is not handled here: RunEvery
// recognizes it via ParseEvery before ever calling ParseCron, and a caller
// going through ParseCron directly gets an explicit rejection instead of a
// silently wrong schedule.
func parseDescriptor(expr string) (*cronast.AST, error) {
	switch {
	case expr == "@yearly" || expr == "@annually":
		return cronast.Parse5("0 0 1 1 *")
	case expr == "@monthly":
		return cronast.Parse5("0 0 1 * *")
	case expr == "@weekly":
		return cronast.Parse5("0 0 * * 0")
	case expr == "@daily" || expr == "@midnight":
		return cronast.Parse5("0 0 * * *")
	case expr == "@hourly":
		return cronast.Parse5("0 * * * *")
	case strings.HasPrefix(expr, "@every"):
		return nil, fmt.Errorf("%w: %q is a delay, not a cron schedule; use RunEvery, which translates it via ParseEvery", ErrInvalidCron, expr)
	default:
		return nil, fmt.Errorf("%w: unrecognized descriptor %q", ErrInvalidCron, expr)
	}
}

// ParseEvery recognizes a robfig/cron/v3 "@every <duration>" descriptor and
// translates it into a job.Delay repeating on that period. matched is false
// (with a nil error) when expr isn't an @every descriptor at all, so callers
// can fall through to ParseCron for everything else.
func ParseEvery(expr string) (delay job.Delay, matched bool, err error) {
	trimmed := strings.TrimSpace(expr)
	if !strings.HasPrefix(trimmed, "@every") {
		return job.Delay{}, false, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "@every"))
	d, err := time.ParseDuration(rest)
	if err != nil {
		return job.Delay{}, true, fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
	}
	if d <= 0 {
		return job.Delay{}, true, fmt.Errorf("%w: %q: duration must be positive", ErrInvalidCron, expr)
	}
	return job.Delay{Value: d.Milliseconds(), Unit: "ms"}, true, nil
}
