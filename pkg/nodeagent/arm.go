package nodeagent

import (
	"strconv"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

// armTasks performs the Synced→Running per-task arming sequence for
// every task in table, anchoring each task's first timer expiration at
// reference.
func (a *Agent) armTasks(table *types.ScheduleTable, reference time.Time) {
	for _, task := range table.Tasks {
		rec := a.armOne(task, reference)
		if rec == nil {
			continue
		}
		a.mu.Lock()
		a.records[task.Name] = rec
		a.mu.Unlock()

		if err := a.epoller.Add(rec.Pidfd); err != nil {
			a.logger.Warn().Str("task_name", task.Name).Err(err).Msg("failed to watch task pidfd, termination will go undetected")
		}

		go a.taskLoop(rec)
	}
}

// armOne carries out the arming sequence for a single task: resolve
// the thread, apply affinity and scheduling attributes, open a pidfd,
// register with the observer, create and arm the timer. It returns nil
// when the task could not be armed at all — only a pidfd or timer
// failure aborts this one task; the runtime as a whole keeps going.
func (a *Agent) armOne(task *types.ScheduledTask, reference time.Time) *TimeTriggerRecord {
	logger := a.logger.With().Str("task_name", task.Name).Logger()

	pid, found, err := a.resolver.ResolveByName(task.Name)
	if err != nil {
		logger.Warn().Err(err).Msg("process scan failed, skipping task")
		return nil
	}
	if !found {
		logger.Warn().Msg("no thread matched task name, skipping task")
		return nil
	}

	if cpuIndex, ok := parseCPUIndex(task.AssignedCPU); ok {
		if err := a.platform.SetAffinity(pid, cpuIndex); err != nil {
			logger.Warn().Err(err).Msg("failed to set CPU affinity")
		}
	}

	if err := a.platform.SetSchedAttr(pid, task.Policy, task.Priority); err != nil {
		logger.Warn().Err(err).Msg("failed to set scheduling attributes")
	}

	pidfd, err := a.platform.OpenPidfd(pid)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open pidfd, task will not be armed")
		return nil
	}

	if err := a.obs.Register(pid); err != nil {
		logger.Warn().Err(err).Msg("failed to register process with deadline observer")
	}

	timerFD, err := a.platform.CreateTimer()
	if err != nil {
		logger.Error().Err(err).Msg("failed to create timer, task will not be armed")
		_ = a.platform.ClosePidfd(pidfd)
		return nil
	}
	interval := time.Duration(task.PeriodUS) * time.Microsecond
	if err := a.platform.ArmTimer(timerFD, reference, interval); err != nil {
		logger.Error().Err(err).Msg("failed to arm timer, task will not be armed")
		_ = a.platform.DeleteTimer(timerFD)
		_ = a.platform.ClosePidfd(pidfd)
		return nil
	}

	logger.Info().Int("pid", pid).Msg("task armed")
	return &TimeTriggerRecord{
		Task:        task,
		PID:         pid,
		Pidfd:       pidfd,
		TimerFD:     timerFD,
		LastTimerTS: reference,
	}
}

func parseCPUIndex(cpu string) (int, bool) {
	if cpu == "" || cpu == types.AnyCPU {
		return 0, false
	}
	n, err := strconv.Atoi(cpu)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// disarmAll carries out the Stopping→Done teardown: delete timers,
// close pidfds, unregister observer PIDs.
func (a *Agent) disarmAll() {
	a.mu.Lock()
	records := a.records
	a.records = make(map[string]*TimeTriggerRecord)
	a.mu.Unlock()

	for name, rec := range records {
		if err := a.platform.DeleteTimer(rec.TimerFD); err != nil {
			a.logger.Warn().Str("task_name", name).Err(err).Msg("failed to delete timer during shutdown")
		}
		if err := a.platform.ClosePidfd(rec.Pidfd); err != nil {
			a.logger.Warn().Str("task_name", name).Err(err).Msg("failed to close pidfd during shutdown")
		}
		a.obs.Unregister(rec.PID)
	}
}
