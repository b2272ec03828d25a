// Package activity implements one goroutine per scheduled job: a
// single-threaded state machine that arms a timer, fires a task body, and
// re-arms, with no shared worker pool and no retry.
package activity

import (
	"errors"
	"fmt"
	"time"

	"gosched/internal/eventbus"
	"gosched/internal/job"
	"gosched/internal/schedule"
	"gosched/internal/stats"
	"gosched/internal/timescale"
	"gosched/pkg/logx"
)

// ErrTaskPanic wraps a recovered panic from a task body, or an error the
// task body returned; either one terminates the activity abnormally.
var ErrTaskPanic = errors.New("activity: task panicked")

// ErrCanceled marks a Handle.Wait() return caused by an explicit Cancel,
// distinguished from a normal schedule exhaustion (which returns nil).
var ErrCanceled = errors.New("activity: canceled")

// Phase is a snapshot label for introspection/logging only. Control flow is
// the goroutine + select structure below, not a switch driven by Phase.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseScheduling
	PhaseArmed
	PhaseFiring
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseScheduling:
		return "scheduling"
	case PhaseArmed:
		return "armed"
	case PhaseFiring:
		return "firing"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config bundles the ambient collaborators an activity reports through.
// Either field may be left zero: a zero Bus is simply never published to,
// a zero Logger is a safe no-op (logx.Logger's zero value).
type Config struct {
	Bus    eventbus.Bus
	Logger logx.Logger
}

// Handle is the external, thread-safe handle to a running activity.
type Handle struct {
	name    string
	mailbox chan signal
	done    chan struct{}

	started chan error // buffered(1); receives the first ScheduleNext outcome

	err     error // set once, before done is closed: the abnormal-termination cause, or ErrCanceled

	st    *runState       // set by run; touched only by the activity goroutine
	final stats.Snapshot3 // set by terminate before done is closed; returned by Stats afterwards
}

// New starts an activity goroutine for j and blocks until the very first
// scheduling attempt resolves (armed, or terminated because scheduling
// itself failed), surfacing that first failure the way RunJob/Run* need to.
func New(j job.Job, testOpts job.TestOptions, cfg Config) (*Handle, error) {
	h := &Handle{
		name:    j.Options.Name,
		mailbox: make(chan signal, 8),
		done:    make(chan struct{}),
		started: make(chan error, 1),
	}
	go h.run(j, testOpts, cfg)

	if err := <-h.started; err != nil {
		return h, err
	}
	return h, nil
}

// Name returns the job's registry name, or "" if it was never named.
func (h *Handle) Name() string { return h.name }

// Cancel requests termination. Idempotent: a send after termination is a
// documented no-op guarded against the closed done channel.
func (h *Handle) Cancel() {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.mailbox <- cancelSignal{}:
	case <-h.done:
	}
}

// Reconfigure swaps the running job's descriptor. Returns ReconfigureTerminated
// if the activity had already exited.
func (h *Handle) Reconfigure(j job.Job, testOpts job.TestOptions) ReconfigureResult {
	reply := make(chan ReconfigureResult, 1)
	select {
	case h.mailbox <- reconfigureSignal{job: j, opts: testOpts, reply: reply}:
	case <-h.done:
		return ReconfigureTerminated
	}
	select {
	case r := <-reply:
		return r
	case <-h.done:
		return ReconfigureTerminated
	}
}

// Wait blocks until the activity terminates, returning ErrTaskPanic-wrapped
// error on abnormal termination, ErrCanceled if the caller itself canceled
// it, or nil on normal schedule exhaustion.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Err returns the terminal error without blocking; only meaningful after
// Wait or NextSchedule report the activity has terminated.
func (h *Handle) Err() error { return h.err }

// NextSchedule reports the activity's current scheduling state. ok is false
// once the activity has terminated.
func (h *Handle) NextSchedule() (scheduledAt, quantizedScheduledAt time.Time, delayMS int64, ok bool) {
	reply := make(chan nextScheduleReply, 1)
	select {
	case h.mailbox <- nextScheduleQuerySignal{reply: reply}:
	case <-h.done:
		return time.Time{}, time.Time{}, 0, false
	}
	select {
	case r := <-reply:
		return r.scheduledAt, r.quantizedScheduledAt, r.delayMS, r.ok
	case <-h.done:
		return time.Time{}, time.Time{}, 0, false
	}
}

// Stats returns a snapshot of the three per-fire aggregates. Once the
// activity has terminated it returns the aggregates as they stood at exit.
func (h *Handle) Stats() stats.Snapshot3 {
	reply := make(chan stats.Snapshot3, 1)
	select {
	case h.mailbox <- statsQuerySignal{reply: reply}:
	case <-h.done:
		return h.final
	}
	select {
	case r := <-reply:
		return r
	case <-h.done:
		return h.final
	}
}

// runState is the goroutine-local state described in §3.2; it never crosses
// a goroutine boundary except through the query signals above.
type runState struct {
	job     job.Job
	testOpts job.TestOptions
	clock   timescale.Clock

	scheduledAt         time.Time
	quantizedScheduledAt time.Time
	delayMS             int64
	repeat              job.Repeat

	schedulingDelay   stats.Accumulator
	quantizationError stats.Accumulator
	executionTime     stats.Accumulator

	canceled bool
	fireCount int
}

func (h *Handle) run(j job.Job, testOpts job.TestOptions, cfg Config) {
	st := &runState{
		job:      j,
		testOpts: testOpts,
		clock:    testOpts.TimeScale,
		repeat:   j.Options.Repeat,
	}
	if st.clock == nil {
		st.clock = timescale.Real()
	}
	h.st = st

	startTime := testOpts.StartTime
	if startTime.IsZero() {
		now, err := st.clock.Now(j.Options.Timezone)
		if err != nil {
			h.finishStartup(err)
			h.terminate(cfg, nil)
			return
		}
		startTime = now
	}
	st.scheduledAt = startTime
	st.quantizedScheduledAt = startTime

	logField := logx.String("job", h.name)

	if j.Options.RunOnce {
		if h.fire(st, cfg, st.scheduledAt) {
			// The bootstrap fire panicked and the activity already
			// terminated; unblock New's wait for the first outcome since
			// mainLoop (the usual place finishStartup is called) never runs.
			h.finishStartup(nil)
			return
		}
	}

	h.mainLoop(st, cfg, logField)
}

// mainLoop implements ScheduleNext -> Armed -> Firing -> ScheduleNext,
// reporting the outcome of the very first ScheduleNext via h.started.
func (h *Handle) mainLoop(st *runState, cfg Config, logField logx.Field) {
	for {
		if st.repeat.Exhausted() {
			h.finishStartup(nil)
			h.terminate(cfg, nil)
			return
		}
		if !st.repeat.IsForever() {
			st.repeat = st.repeat.Decrement()
		}

		res, err := schedule.NextFire(st.scheduledAt, st.job.Schedule, schedule.Params{
			Timezone:                st.job.Options.Timezone,
			NonexistentTimeStrategy: st.job.Options.NonexistentTimeStrategy,
			Clock:                   st.clock,
		})
		if err != nil {
			cfg.Logger.Warn("activity: schedule evaluation failed", logField, logx.Err(err))
			h.finishStartup(err)
			h.terminate(cfg, nil)
			return
		}
		st.scheduledAt = res.NextInstant
		st.quantizedScheduledAt = res.QuantizedAt
		st.delayMS = res.RealDelayMS

		h.finishStartup(nil)
		if cfg.Bus != nil {
			cfg.Bus.Publish(eventbus.JobEvent{Job: h.name, Phase: eventbus.PhaseArmed, ScheduledAt: st.scheduledAt})
		}

		timer := time.NewTimer(time.Duration(st.delayMS) * time.Millisecond)
		terminated, reconfigured := h.armed(st, cfg, timer)
		if terminated {
			return
		}
		if reconfigured {
			// Bootstrap was already re-run by armed(); loop continues to
			// ScheduleNext with the fresh state.
			continue
		}

		if h.fire(st, cfg, st.scheduledAt) {
			return
		}
	}
}

// armed waits on the timer or the mailbox. Returns terminated=true if the
// activity exited from this state (cancel, or a reconfigure whose fresh
// Bootstrap/ScheduleNext failed); reconfigured=true if a reconfigure was
// accepted and the caller should loop back into ScheduleNext.
func (h *Handle) armed(st *runState, cfg Config, timer *time.Timer) (terminated, reconfigured bool) {
	for {
		select {
		case <-timer.C:
			return false, false

		case sig := <-h.mailbox:
			switch s := sig.(type) {
			case cancelSignal:
				timer.Stop()
				st.canceled = true
				h.terminate(cfg, ErrCanceled)
				return true, false

			case reconfigureSignal:
				timer.Stop()
				st.job = s.job
				st.testOpts = s.opts
				if s.opts.TimeScale != nil {
					st.clock = s.opts.TimeScale
				}
				st.repeat = s.job.Options.Repeat
				now, err := st.clock.Now(s.job.Options.Timezone)
				if err != nil {
					s.reply <- ReconfigureShutdown
					h.terminate(cfg, nil)
					return true, false
				}
				st.scheduledAt = now
				st.quantizedScheduledAt = now
				if s.job.Options.RunOnce {
					if h.fire(st, cfg, st.scheduledAt) {
						s.reply <- ReconfigureOK
						return true, false
					}
				}
				if !st.repeat.Exhausted() {
					if _, err := schedule.NextFire(st.scheduledAt, st.job.Schedule, schedule.Params{
						Timezone:                st.job.Options.Timezone,
						NonexistentTimeStrategy: st.job.Options.NonexistentTimeStrategy,
						Clock:                   st.clock,
					}); err != nil {
						s.reply <- ReconfigureShutdown
						h.terminate(cfg, nil)
						return true, false
					}
				}
				s.reply <- ReconfigureOK
				return false, true

			case nextScheduleQuerySignal:
				s.reply <- nextScheduleReply{
					scheduledAt:          st.scheduledAt,
					quantizedScheduledAt: st.quantizedScheduledAt,
					delayMS:              st.delayMS,
					ok:                   true,
				}

			case statsQuerySignal:
				s.reply <- st.snapshot3()
			}
		}
	}
}

// fire runs the task body synchronously, turning a recovered panic or a
// returned error into an abnormal termination, and updates the three stats
// aggregates. Returns terminated=true if the task panicked or returned an
// error, so callers stop driving the goroutine instead of re-arming a dead
// activity.
//
// st.job.Options.Overlap is not read here: the select loop only ever waits
// on the timer while Armed and runs the task body synchronously while
// Firing, so both Overlap settings schedule the next fire from scheduledAt
// with the delay clamped to 0 by schedule.NextFire; Overlap has no
// observable effect on this activity.
func (h *Handle) fire(st *runState, cfg Config, scheduledAt time.Time) (terminated bool) {
	actualStart := realNow(st.clock, st.job.Options.Timezone)

	err := invoke(st.job.Task, scheduledAt)

	actualEnd := realNow(st.clock, st.job.Options.Timezone)
	st.fireCount++
	updateStats(st, scheduledAt, st.quantizedScheduledAt, actualStart, actualEnd)

	if cfg.Bus != nil {
		cfg.Bus.Publish(eventbus.JobEvent{Job: h.name, Phase: eventbus.PhaseFired, ScheduledAt: scheduledAt})
	}

	if err != nil {
		cfg.Logger.Error("activity: task panicked", logx.String("job", h.name), logx.Err(err))
		h.terminate(cfg, fmt.Errorf("%w: %v", ErrTaskPanic, err))
		return true
	}
	return false
}

// invoke calls a job.Task, recovering any panic into a returned error.
func invoke(t job.Task, scheduledAt time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	switch fn := t.(type) {
	case job.Func0:
		return fn()
	case job.Func1:
		return fn(scheduledAt)
	default:
		return fmt.Errorf("activity: unsupported task type %T", t)
	}
}

func realNow(clock timescale.Clock, tz string) time.Time {
	if tz == "" {
		tz = "Etc/UTC"
	}
	now, err := clock.Now(tz)
	if err != nil {
		return time.Now().UTC()
	}
	return now
}

func updateStats(st *runState, scheduledAt, quantizedAt, actualStart, actualEnd time.Time) {
	st.schedulingDelay.Update(float64(actualStart.Sub(quantizedAt).Microseconds()))
	st.quantizationError.Update(absMicros(quantizedAt.Sub(scheduledAt)))
	st.executionTime.Update(float64(actualEnd.Sub(actualStart).Microseconds()))
}

func absMicros(d time.Duration) float64 {
	us := d.Microseconds()
	if us < 0 {
		us = -us
	}
	return float64(us)
}

func (st *runState) snapshot3() stats.Snapshot3 {
	return stats.Snapshot3{
		SchedulingDelay:   st.schedulingDelay.Snapshot(),
		QuantizationError: st.quantizationError.Snapshot(),
		ExecutionTime:     st.executionTime.Snapshot(),
	}
}

// finishStartup delivers the first ScheduleNext outcome to New, if it
// hasn't already been delivered (subsequent reschedules stay silent, per
// §4.4.2/§4.5).
func (h *Handle) finishStartup(err error) {
	select {
	case h.started <- err:
	default:
	}
}

// terminate closes the done channel exactly once, recording err (if any) for
// Wait/Err (an abnormal-termination cause, or ErrCanceled), saving the final
// stats for Stats, and publishes a job.terminated event so eventbus
// subscribers can observe the activity's exit without polling Handle.Wait.
// The event carries Err only for an abnormal termination, not for a cancel.
func (h *Handle) terminate(cfg Config, err error) {
	select {
	case <-h.done:
		return
	default:
	}
	if err != nil {
		h.err = err
	}
	if h.st != nil {
		h.final = h.st.snapshot3()
	}
	close(h.done)
	if cfg.Bus != nil {
		evErr := err
		if errors.Is(err, ErrCanceled) {
			evErr = nil
		}
		cfg.Bus.Publish(eventbus.JobEvent{Job: h.name, Phase: eventbus.PhaseTerminated, Err: evErr})
	}
}
