//go:build !linux

package nodeagent

import (
	"fmt"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

// stubPlatform backs non-Linux builds. Every node agent syscall this
// package names (sched_setaffinity, sched_setattr, pidfd, timerfd,
// epoll) is Linux-only; this stub exists so the package still compiles
// elsewhere, failing each call the same way a Linux kernel without the
// relevant feature would.
type stubPlatform struct{}

func newPlatform() Platform { return stubPlatform{} }

var errUnsupportedPlatform = fmt.Errorf("node agent runtime requires linux")

func (stubPlatform) SetAffinity(pid int, cpuIndex int) error {
	return orcherr.Wrap(orcherr.Permission, "nodeagent.SetAffinity", errUnsupportedPlatform)
}

func (stubPlatform) SetSchedAttr(pid int, policy types.SchedPolicy, priority int) error {
	return orcherr.Wrap(orcherr.Permission, "nodeagent.SetSchedAttr", errUnsupportedPlatform)
}

func (stubPlatform) OpenPidfd(pid int) (int, error) {
	return 0, orcherr.Wrap(orcherr.Signal, "nodeagent.OpenPidfd", errUnsupportedPlatform)
}

func (stubPlatform) ClosePidfd(fd int) error { return nil }

func (stubPlatform) CreateTimer() (int, error) {
	return 0, orcherr.Wrap(orcherr.Timer, "nodeagent.CreateTimer", errUnsupportedPlatform)
}

func (stubPlatform) ArmTimer(fd int, absolute time.Time, interval time.Duration) error {
	return orcherr.Wrap(orcherr.Timer, "nodeagent.ArmTimer", errUnsupportedPlatform)
}

func (stubPlatform) ReadTimerExpirations(fd int) (uint64, error) {
	return 0, orcherr.Wrap(orcherr.Timer, "nodeagent.ReadTimerExpirations", errUnsupportedPlatform)
}

func (stubPlatform) DeleteTimer(fd int) error { return nil }

func (stubPlatform) SendSignal(pidfd int, sig int) error {
	return orcherr.Wrap(orcherr.Signal, "nodeagent.SendSignal", errUnsupportedPlatform)
}

type stubEpoller struct{}

func newEpoller() Epoller { return stubEpoller{} }

func (stubEpoller) Open() error {
	return orcherr.Wrap(orcherr.Config, "nodeagent.Epoller.Open", errUnsupportedPlatform)
}
func (stubEpoller) Close() error { return nil }
func (stubEpoller) Add(fd int) error {
	return orcherr.Wrap(orcherr.Config, "nodeagent.Epoller.Add", errUnsupportedPlatform)
}
func (stubEpoller) Remove(fd int) error { return nil }
func (stubEpoller) Wait(timeout time.Duration) ([]int, error) {
	return nil, orcherr.Wrap(orcherr.Config, "nodeagent.Epoller.Wait", errUnsupportedPlatform)
}
