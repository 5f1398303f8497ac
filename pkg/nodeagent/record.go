package nodeagent

import (
	"sync/atomic"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/observer"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

// TimeTriggerRecord is the per-task runtime state the node agent keeps
// once a task is armed: the scheduled task copy, the
// resolved OS thread id, a process-file-descriptor handle, a timer
// handle, the most recent timer-expiry timestamp, and the two most
// recent observer timestamps plus the last observed sigwait phase.
//
// It is effectively single-writer (the task's own timer callback) and
// single-reader (the epoll thread, checking for process termination);
// the fields read cross-goroutine by the epoll thread are the pidfd and
// timer fd only, both written once at arm time and never again.
type TimeTriggerRecord struct {
	Task *types.ScheduledTask

	PID     int
	Pidfd   int
	TimerFD int

	LastTimerTS time.Time

	CurrentObserverTS  time.Time
	PreviousObserverTS time.Time
	LastPhase          observer.Phase

	// cycleMisses and totalMisses are written by this task's own timer
	// callback and reset/read by the Hyperperiod Cycle Timer thread, so
	// unlike the rest of this record they need atomic access rather
	// than the single-writer assumption the other fields rely on.
	cycleMisses int64
	totalMisses int64
}

// AddMiss records one deadline miss, returning the updated per-cycle count.
func (r *TimeTriggerRecord) AddMiss() int64 {
	atomic.AddInt64(&r.totalMisses, 1)
	return atomic.AddInt64(&r.cycleMisses, 1)
}

// TotalMisses returns the lifetime miss count for this task.
func (r *TimeTriggerRecord) TotalMisses() int64 {
	return atomic.LoadInt64(&r.totalMisses)
}

// SwapCycleMisses atomically reads and resets the per-cycle miss count.
func (r *TimeTriggerRecord) SwapCycleMisses() int64 {
	return atomic.SwapInt64(&r.cycleMisses, 0)
}
