//go:build linux

package nodeagent

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"golang.org/x/sys/unix"
)

// linuxPlatform is the real Platform, grounded on the raw
// golang.org/x/sys/unix syscall usage style of the gravwell caps
// package (direct unix.* calls behind a //go:build linux file, no
// cgo).
type linuxPlatform struct{}

func newPlatform() Platform { return linuxPlatform{} }

func (linuxPlatform) SetAffinity(pid int, cpuIndex int) error {
	var set unix.CPUSet
	set.Set(cpuIndex)
	if err := unix.SchedSetaffinity(pid, &set); err != nil {
		return orcherr.Wrap(orcherr.Permission, "nodeagent.SetAffinity", err)
	}
	return nil
}

func schedPolicyCode(p types.SchedPolicy) uint32 {
	switch p {
	case types.SchedFIFO:
		return unix.SCHED_FIFO
	case types.SchedRR:
		return unix.SCHED_RR
	default:
		return unix.SCHED_NORMAL
	}
}

func (linuxPlatform) SetSchedAttr(pid int, policy types.SchedPolicy, priority int) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   schedPolicyCode(policy),
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(pid, &attr, 0); err != nil {
		return orcherr.Wrap(orcherr.Permission, "nodeagent.SetSchedAttr", err)
	}
	return nil
}

func (linuxPlatform) OpenPidfd(pid int) (int, error) {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return 0, orcherr.Wrap(orcherr.Signal, "nodeagent.OpenPidfd", err)
	}
	return fd, nil
}

func (linuxPlatform) ClosePidfd(fd int) error {
	return unix.Close(fd)
}

func (linuxPlatform) CreateTimer() (int, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_REALTIME, 0)
	if err != nil {
		return 0, orcherr.Wrap(orcherr.Timer, "nodeagent.CreateTimer", err)
	}
	return fd, nil
}

func (linuxPlatform) ArmTimer(fd int, absolute time.Time, interval time.Duration) error {
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(interval.Nanoseconds()),
		Value:    unix.NsecToTimespec(absolute.UnixNano()),
	}
	if err := unix.TimerfdSettime(fd, unix.TFD_TIMER_ABSTIME, &spec, nil); err != nil {
		return orcherr.Wrap(orcherr.Timer, "nodeagent.ArmTimer", err)
	}
	return nil
}

func (linuxPlatform) ReadTimerExpirations(fd int) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return 0, orcherr.Wrap(orcherr.Timer, "nodeagent.ReadTimerExpirations", err)
	}
	if n != 8 {
		return 0, orcherr.Wrap(orcherr.Timer, "nodeagent.ReadTimerExpirations", fmt.Errorf("short read: %d bytes", n))
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (linuxPlatform) DeleteTimer(fd int) error {
	return unix.Close(fd)
}

func (linuxPlatform) SendSignal(pidfd int, sig int) error {
	if err := unix.PidfdSendSignal(pidfd, unix.Signal(sig), nil, 0); err != nil {
		return orcherr.Wrap(orcherr.Signal, "nodeagent.SendSignal", err)
	}
	return nil
}

// linuxEpoller is the real Epoller, one epoll instance per node agent.
type linuxEpoller struct {
	fd int
}

func newEpoller() Epoller { return &linuxEpoller{} }

func (e *linuxEpoller) Open() error {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return orcherr.Wrap(orcherr.Config, "nodeagent.Epoller.Open", err)
	}
	e.fd = fd
	return nil
}

func (e *linuxEpoller) Close() error {
	return unix.Close(e.fd)
}

func (e *linuxEpoller) Add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (e *linuxEpoller) Remove(fd int) error {
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (e *linuxEpoller) Wait(timeout time.Duration) ([]int, error) {
	events := make([]unix.EpollEvent, 16)
	n, err := unix.EpollWait(e.fd, events, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, orcherr.Wrap(orcherr.Config, "nodeagent.Epoller.Wait", err)
	}
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ready = append(ready, int(events[i].Fd))
	}
	return ready, nil
}
