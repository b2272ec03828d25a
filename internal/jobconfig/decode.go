package jobconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gosched/internal/facade"
	"gosched/internal/job"
)

// Parse reads and decodes the job-definitions file at path (JSON or YAML,
// selected by extension), rejecting unknown fields and trailing data the
// same way the teacher's config.Parse does.
func Parse(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("jobconfig: trailing data in %s", path)
		}
		return nil, err
	}
	return &f, nil
}

var everyPattern = regexp.MustCompile(`^every\s+(\d+)\s*([a-zA-Z]+)$`)

// ParseSchedule accepts either "every <n><unit>" (a repeating delay, e.g.
// "every 30s") or anything facade.ParseCron accepts (a 5/7-field crontab or
// a robfig/cron/v3 descriptor).
func ParseSchedule(s string) (job.Schedule, error) {
	trimmed := strings.TrimSpace(s)
	if m := everyPattern.FindStringSubmatch(strings.ToLower(trimmed)); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("jobconfig: bad interval %q: %w", s, err)
		}
		return job.Delay{Value: n, Unit: m[2]}, nil
	}
	ast, err := facade.ParseCron(trimmed)
	if err != nil {
		return nil, err
	}
	return job.Cron{AST: ast}, nil
}

// parseRepeat decodes the options.repeat field: a JSON bool, a non-negative
// integer, or absent (RepeatForever, matching facade.RunJob's own default).
// A negative integer is rejected with facade.ErrInvalidRepeat rather than
// passed through as a silent RepeatNever.
func parseRepeat(raw json.RawMessage) (job.Repeat, error) {
	if len(raw) == 0 {
		return job.RepeatForever, nil
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		if asBool {
			return job.RepeatForever, nil
		}
		return job.RepeatNever, nil
	}
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		if asInt < 0 {
			return job.Repeat{}, fmt.Errorf("%w: options.repeat %d", facade.ErrInvalidRepeat, asInt)
		}
		return job.RepeatN(asInt), nil
	}
	return job.Repeat{}, fmt.Errorf("jobconfig: options.repeat must be a bool or integer, got %q", raw)
}

// toOptions translates JobDefOptions into job.Options, leaving Name/Context
// for the caller to fill in (Name comes from JobDef.Name; Context isn't
// representable in this file format).
func toOptions(o JobDefOptions) (job.Options, error) {
	repeat, err := parseRepeat(o.Repeat)
	if err != nil {
		return job.Options{}, err
	}
	strategy := job.StrategySkip
	switch strings.ToLower(o.NonexistentTimeStrategy) {
	case "", "skip":
		strategy = job.StrategySkip
	case "adjust":
		strategy = job.StrategyAdjust
	default:
		return job.Options{}, fmt.Errorf("jobconfig: unrecognized nonexistent_time_strategy %q", o.NonexistentTimeStrategy)
	}
	return job.Options{
		Timezone:                o.Timezone,
		Overlap:                 o.Overlap,
		Repeat:                  repeat,
		RunOnce:                 o.RunOnce,
		NonexistentTimeStrategy: strategy,
	}, nil
}
