// Package facade is the external surface of the scheduler: RunAt, RunIn,
// RunEvery, RunJob, UpdateJob, Cancel. Each Run* starts one activity
// goroutine (internal/activity) and, if the job is named, registers it in
// internal/registry so later calls can find it by name.
package facade

import (
	"errors"
	"fmt"
	"time"

	"gosched/internal/activity"
	"gosched/internal/cronast"
	"gosched/internal/eventbus"
	"gosched/internal/job"
	"gosched/internal/registry"
	"gosched/pkg/logx"
)

// ErrInvalidCron is returned when a cron string or descriptor fails to parse.
var ErrInvalidCron = errors.New("facade: invalid cron expression")

// ErrInvalidRepeat is returned by RunJob/UpdateJob when j.Options.Repeat is
// RepeatN(n) with n < 0. The core (internal/activity) would silently treat
// that the same as RepeatNever via Repeat.Exhausted; the façade holds
// callers to a stricter bar and rejects it instead.
var ErrInvalidRepeat = errors.New("facade: invalid repeat count")

// ErrJobNotFound is returned by UpdateJob when no activity is registered
// under the given name.
var ErrJobNotFound = errors.New("facade: job not found")

// MFA is an alias for job.MFA: a module/function/args-style invocation, kept
// here because it is the shape callers of this package construct directly.
type MFA = job.MFA

// Scheduler bundles the registry and ambient collaborators (event bus,
// logger) that every façade operation is threaded through.
type Scheduler struct {
	registry *registry.Registry
	bus      eventbus.Bus
	logger   logx.Logger

	svc        *logx.Service
	stopAlerts func()
}

// New returns a Scheduler with a fresh registry.
func New(bus eventbus.Bus, logger logx.Logger) *Scheduler {
	return &Scheduler{registry: registry.New(), bus: bus, logger: logger}
}

// NewWithAlerts returns a Scheduler whose logger is backed by a logx.Service
// with alerting enabled, and starts a background subscriber that watches the
// Scheduler's own event bus for abnormal terminations (a task that panicked
// or returned an error; a schedule that can no longer be evaluated ends the
// activity normally and is not forwarded) and logs them at error level so
// they flow through the alert pipeline in addition to whatever logging each
// individual activity does on its own. Close releases both.
func NewWithAlerts(logCfg Config, sink logx.AlertSink) *Scheduler {
	logCfg.Alert.Enabled = true
	svc, logger := logx.New(logCfg, sink)

	bus := eventbus.New()
	s := New(bus, logger)
	s.svc = svc

	ch, unsub := bus.Subscribe(32)
	s.stopAlerts = unsub
	go watchTerminations(ch, logger)

	return s
}

// Config is an alias for logx.Config, kept here so callers building a
// Scheduler don't need to import pkg/logx just to name it.
type Config = logx.Config

func watchTerminations(ch <-chan eventbus.JobEvent, logger logx.Logger) {
	for e := range ch {
		if e.Phase != eventbus.PhaseTerminated || e.Err == nil {
			continue
		}
		logger.Error("facade: job terminated abnormally",
			logx.String("job", e.Job), logx.Err(e.Err))
	}
}

// Close releases the alert pipeline's background subscriber and log sinks,
// if this Scheduler was built with NewWithAlerts. Safe to call on any
// Scheduler, including one built with New.
func (s *Scheduler) Close() error {
	if s.stopAlerts != nil {
		s.stopAlerts()
	}
	if s.svc != nil {
		return s.svc.Close()
	}
	return nil
}

func (s *Scheduler) activityConfig() activity.Config {
	return activity.Config{Bus: s.bus, Logger: s.logger}
}

// RunAt schedules task to fire once at the given instant.
func (s *Scheduler) RunAt(task job.Task, at time.Time, opts job.Options) (*activity.Handle, error) {
	delayMS := time.Until(at).Milliseconds()
	if delayMS < 0 {
		delayMS = 0
	}
	opts.Repeat = job.RepeatN(1)
	j := job.Job{Name: opts.Name, Task: task, Schedule: job.Delay{Value: delayMS, Unit: "ms"}, Options: opts.WithDefaults()}
	return s.RunJob(j, job.TestOptions{})
}

// RunIn schedules task to fire once after delay.
func (s *Scheduler) RunIn(task job.Task, delay job.Delay, opts job.Options) (*activity.Handle, error) {
	opts.Repeat = job.RepeatN(1)
	j := job.Job{Name: opts.Name, Task: task, Schedule: delay, Options: opts.WithDefaults()}
	return s.RunJob(j, job.TestOptions{})
}

// RunEvery schedules task against a repeating cron. cronOrString may be a
// string (parsed via ParseCron), an already-parsed *cronast.AST, or an
// "@every <duration>" descriptor, which has no calendar representation and
// is instead translated into a job.Delay-based repeating schedule.
func (s *Scheduler) RunEvery(task job.Task, cronOrString any, opts job.Options) (*activity.Handle, error) {
	if opts.Repeat == (job.Repeat{}) {
		opts.Repeat = job.RepeatForever
	}
	if str, ok := cronOrString.(string); ok {
		if delay, matched, err := ParseEvery(str); matched {
			if err != nil {
				return nil, err
			}
			j := job.Job{Name: opts.Name, Task: task, Schedule: delay, Options: opts.WithDefaults()}
			return s.RunJob(j, job.TestOptions{})
		}
	}

	sched, err := toCronSchedule(cronOrString)
	if err != nil {
		return nil, err
	}
	j := job.Job{Name: opts.Name, Task: task, Schedule: sched, Options: opts.WithDefaults()}
	return s.RunJob(j, job.TestOptions{})
}

func toCronSchedule(cronOrString any) (job.Cron, error) {
	switch v := cronOrString.(type) {
	case string:
		ast, err := ParseCron(v)
		if err != nil {
			return job.Cron{}, err
		}
		return job.Cron{AST: ast}, nil
	case *cronast.AST:
		return job.Cron{AST: v}, nil
	case job.Cron:
		return v, nil
	default:
		return job.Cron{}, fmt.Errorf("%w: unsupported cron value %T", ErrInvalidCron, cronOrString)
	}
}

// RunJob is the direct entry point every other Run* delegates to.
func (s *Scheduler) RunJob(j job.Job, testOpts job.TestOptions) (*activity.Handle, error) {
	if j.Options.Repeat == (job.Repeat{}) {
		j.Options.Repeat = job.RepeatForever
	}
	if j.Options.Repeat.Invalid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRepeat, j.Options.Repeat)
	}
	j.Options = j.Options.WithDefaults()

	h, err := activity.New(j, testOpts, s.activityConfig())
	if err != nil {
		return h, err
	}
	if j.Name != "" {
		s.registry.Upsert(j.Name, h)
		s.registry.Watch(j.Name, h)
	}
	return h, nil
}

// UpdateJob looks the activity up by j.Name and reconfigures it in place.
func (s *Scheduler) UpdateJob(j job.Job, testOpts job.TestOptions) (activity.ReconfigureResult, error) {
	if j.Name == "" {
		return activity.ReconfigureTerminated, fmt.Errorf("%w: UpdateJob requires a name", ErrJobNotFound)
	}
	h, ok := s.registry.Lookup(j.Name)
	if !ok {
		return activity.ReconfigureTerminated, fmt.Errorf("%w: %q", ErrJobNotFound, j.Name)
	}
	if j.Options.Repeat == (job.Repeat{}) {
		j.Options.Repeat = job.RepeatForever
	}
	if j.Options.Repeat.Invalid() {
		return activity.ReconfigureTerminated, fmt.Errorf("%w: %v", ErrInvalidRepeat, j.Options.Repeat)
	}
	j.Options = j.Options.WithDefaults()
	return h.Reconfigure(j, testOpts), nil
}

// Cancel stops h. Idempotent.
func (s *Scheduler) Cancel(h *activity.Handle) error {
	h.Cancel()
	return nil
}
