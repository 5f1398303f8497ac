package nodeagent

import (
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

// Platform is the seam between the node agent's state machine and the
// raw Linux syscalls it needs: affinity, scheduling
// attributes, pidfds, timerfds and epoll. Swapping it for a fake lets
// the state machine be exercised on any OS and without the privileges
// real sched_setattr/timerfd calls require; the real implementation
// lives in platform_linux.go.
type Platform interface {
	// SetAffinity pins pid to cpuIndex. Callers treat failure as non-fatal.
	SetAffinity(pid int, cpuIndex int) error
	// SetSchedAttr applies policy and priority to pid. Callers treat
	// failure as non-fatal.
	SetSchedAttr(pid int, policy types.SchedPolicy, priority int) error
	// OpenPidfd returns a process-file-descriptor handle for pid, so
	// signals survive PID reuse. Failure aborts arming that task.
	OpenPidfd(pid int) (int, error)
	// ClosePidfd releases a handle returned by OpenPidfd.
	ClosePidfd(fd int) error
	// CreateTimer allocates a new OS timer, returning an fd pollable by
	// Epoller. Failure aborts arming that task.
	CreateTimer() (int, error)
	// ArmTimer arms fd to first expire at absolute and then every
	// interval thereafter.
	ArmTimer(fd int, absolute time.Time, interval time.Duration) error
	// ReadTimerExpirations blocks until fd's timer has fired at least
	// once since the last call, returning the number of expirations
	// coalesced since then (normally 1).
	ReadTimerExpirations(fd int) (uint64, error)
	// DeleteTimer releases a timer fd.
	DeleteTimer(fd int) error
	// SendSignal delivers a wake-up signal through pidfd rather than by
	// PID, so a reused PID can never be targeted by mistake.
	SendSignal(pidfd int, sig int) error
}

// Epoller multiplexes readiness across every armed task's pidfd, backing
// the Running state's single epoll loop. Timer fds are not added to it;
// each task's timer goroutine reads its own timer fd.
type Epoller interface {
	Open() error
	Close() error
	Add(fd int) error
	Remove(fd int) error
	// Wait blocks up to timeout for at least one fd to become ready,
	// returning the ready fds. A zero-length result with a nil error
	// means the wait timed out.
	Wait(timeout time.Duration) ([]int, error)
}
