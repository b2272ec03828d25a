package activity

import (
	"time"

	"gosched/internal/job"
	"gosched/internal/stats"
)

// signal is the sum type carried over an activity's mailbox channel. The
// timer itself is not a signal: Armed selects directly on the *time.Timer's
// own channel alongside the mailbox, so there is no separate "timer fired"
// message to route.
type signal interface {
	isSignal()
}

// reconfigureSignal carries a replacement descriptor and reply channel.
type reconfigureSignal struct {
	job   job.Job
	opts  job.TestOptions
	reply chan ReconfigureResult
}

func (reconfigureSignal) isSignal() {}

// cancelSignal requests unconditional termination.
type cancelSignal struct{}

func (cancelSignal) isSignal() {}

// nextScheduleQuerySignal asks the owning goroutine for its current
// schedule snapshot, since 3.2's fields are only ever touched by that
// goroutine.
type nextScheduleQuerySignal struct {
	reply chan nextScheduleReply
}

func (nextScheduleQuerySignal) isSignal() {}

type nextScheduleReply struct {
	scheduledAt         time.Time
	quantizedScheduledAt time.Time
	delayMS             int64
	ok                  bool
}

// statsQuerySignal asks the owning goroutine for a stats snapshot.
type statsQuerySignal struct {
	reply chan stats.Snapshot3
}

func (statsQuerySignal) isSignal() {}

// ReconfigureResult tells a caller what happened to a reconfigure request.
type ReconfigureResult int

const (
	// ReconfigureOK means the activity accepted the new descriptor and is
	// scheduled to run under it.
	ReconfigureOK ReconfigureResult = iota
	// ReconfigureShutdown means the new descriptor's first ScheduleNext
	// failed (e.g. a bad cron/timezone), so the activity terminated normally.
	ReconfigureShutdown
	// ReconfigureTerminated means the activity had already exited before the
	// reconfigure signal could be delivered.
	ReconfigureTerminated
)
