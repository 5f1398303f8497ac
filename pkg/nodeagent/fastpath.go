package nodeagent

import (
	"syscall"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/observer"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

// wakeupSignal is delivered through a task's pidfd at every release,
// telling the worker thread to resume. The node agent never interprets
// this signal itself; it only needs a number the worker's sigwait call
// blocks on.
const wakeupSignal = int(syscall.SIGUSR1)

// taskLoop is the one-goroutine-per-task timer expiration callback: it
// blocks on rec's timerfd and runs fireOnce once per expiration until
// the agent shuts down or the timer read fails.
func (a *Agent) taskLoop(rec *TimeTriggerRecord) {
	for {
		select {
		case <-a.shutdown:
			return
		default:
		}

		if _, err := a.platform.ReadTimerExpirations(rec.TimerFD); err != nil {
			a.logger.Warn().Str("task_name", rec.Task.Name).Err(err).Msg("timer read failed, task loop exiting")
			return
		}
		a.fireOnce(rec)
	}
}

// fireOnce is the signal fast path, run once per task per period. Within
// one task it is always single-threaded: the kernel only ever fires
// one timer expiration at a time per timerfd, so rec's fields need no
// locking here.
func (a *Agent) fireOnce(rec *TimeTriggerRecord) {
	before := time.Now()
	a.traceFire(rec, before)

	if rec.Task.ReleaseUS > 0 {
		target := before.Add(time.Duration(rec.Task.ReleaseUS) * time.Microsecond)
		if d := time.Until(target); d > 0 {
			time.Sleep(d)
		}
	}

	var currentTS time.Time
	var phase observer.Phase
	if a.obs.Available() {
		ts, p, ok := a.obs.RecordFor(rec.PID)
		if ok {
			currentTS, phase = ts, p
			deadlineInstant := rec.LastTimerTS.Add(time.Duration(rec.Task.DeadlineNS()))
			if kind, missed := classify(currentTS, phase, rec.PreviousObserverTS, deadlineInstant); missed {
				a.recordMiss(rec, kind, deadlineInstant)
			}
		}
	}

	if err := a.platform.SendSignal(rec.Pidfd, wakeupSignal); err != nil {
		a.logger.Warn().Str("task_name", rec.Task.Name).Err(err).Msg("failed to deliver wake-up signal")
	}

	rec.LastTimerTS = before
	rec.PreviousObserverTS = rec.CurrentObserverTS
	rec.CurrentObserverTS = currentTS
	rec.LastPhase = phase
}

// classify applies the three deadline-miss classifications in priority
// order: overrun, late, kernel-stuck, and on-time otherwise.
func classify(ts time.Time, phase observer.Phase, previousTS time.Time, deadlineInstant time.Time) (types.FaultKind, bool) {
	if phase == observer.PhaseExiting {
		// The task never entered sigwait since the last check: it is
		// still running the prior job, past its deadline.
		return types.FaultOverrun, true
	}
	if ts.After(deadlineInstant) {
		return types.FaultLate, true
	}
	if !previousTS.IsZero() && ts.Equal(previousTS) {
		return types.FaultKernelStuck, true
	}
	return "", false
}

func (a *Agent) recordMiss(rec *TimeTriggerRecord, kind types.FaultKind, deadlineInstant time.Time) {
	rec.AddMiss()
	a.countMiss(a.cfg.NodeID, rec.Task.Name, kind)

	taskLogger := log.WithTaskName(rec.Task.Name)
	taskLogger.Warn().
		Str("node_id", a.cfg.NodeID).
		Int("pid", rec.PID).
		Str("kind", string(kind)).
		Time("deadline", deadlineInstant).
		Msg("deadline miss")

	if err := a.client.ReportMiss(a.cfg.NodeID, rec.Task.Name); err != nil {
		a.logger.Warn().Str("task_name", rec.Task.Name).Err(err).Msg("failed to report deadline miss upstream")
	}
}
