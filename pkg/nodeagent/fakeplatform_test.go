package nodeagent

import (
	"sync"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

// fakePlatform is a Platform double for tests: it never touches the
// real kernel, just counts calls and hands back sequential fake fds.
type fakePlatform struct {
	mu sync.Mutex

	nextFD int

	affinityErr    error
	schedAttrErr   error
	openPidfdErr   error
	createTimerErr error
	armTimerErr    error

	closedPidfds []int
	deletedTimer []int
	signalsSent  []int

	affinityCalls []int
	schedCalls    []types.SchedPolicy
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{nextFD: 100}
}

func (f *fakePlatform) allocFD() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFD++
	return f.nextFD
}

func (f *fakePlatform) SetAffinity(pid int, cpuIndex int) error {
	f.mu.Lock()
	f.affinityCalls = append(f.affinityCalls, cpuIndex)
	f.mu.Unlock()
	return f.affinityErr
}

func (f *fakePlatform) SetSchedAttr(pid int, policy types.SchedPolicy, priority int) error {
	f.mu.Lock()
	f.schedCalls = append(f.schedCalls, policy)
	f.mu.Unlock()
	return f.schedAttrErr
}

func (f *fakePlatform) OpenPidfd(pid int) (int, error) {
	if f.openPidfdErr != nil {
		return 0, f.openPidfdErr
	}
	return f.allocFD(), nil
}

func (f *fakePlatform) ClosePidfd(fd int) error {
	f.mu.Lock()
	f.closedPidfds = append(f.closedPidfds, fd)
	f.mu.Unlock()
	return nil
}

func (f *fakePlatform) CreateTimer() (int, error) {
	if f.createTimerErr != nil {
		return 0, f.createTimerErr
	}
	return f.allocFD(), nil
}

func (f *fakePlatform) ArmTimer(fd int, absolute time.Time, interval time.Duration) error {
	return f.armTimerErr
}

func (f *fakePlatform) ReadTimerExpirations(fd int) (uint64, error) {
	// Block briefly then report one expiration; tests that don't want
	// repeated fires shut the agent down before this returns again.
	time.Sleep(10 * time.Millisecond)
	return 1, nil
}

func (f *fakePlatform) DeleteTimer(fd int) error {
	f.mu.Lock()
	f.deletedTimer = append(f.deletedTimer, fd)
	f.mu.Unlock()
	return nil
}

func (f *fakePlatform) SendSignal(pidfd int, sig int) error {
	f.mu.Lock()
	f.signalsSent = append(f.signalsSent, pidfd)
	f.mu.Unlock()
	return nil
}

// fakeEpoller is an Epoller double: it just tracks which fds are
// registered and never reports anything ready, so runLoop idles until
// shutdown in tests.
type fakeEpoller struct {
	mu    sync.Mutex
	fds   map[int]bool
	opens int
}

func newFakeEpoller() *fakeEpoller {
	return &fakeEpoller{fds: make(map[int]bool)}
}

func (e *fakeEpoller) Open() error {
	e.mu.Lock()
	e.opens++
	e.mu.Unlock()
	return nil
}

func (e *fakeEpoller) Close() error { return nil }

func (e *fakeEpoller) Add(fd int) error {
	e.mu.Lock()
	e.fds[fd] = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEpoller) Remove(fd int) error {
	e.mu.Lock()
	delete(e.fds, fd)
	e.mu.Unlock()
	return nil
}

func (e *fakeEpoller) Wait(timeout time.Duration) ([]int, error) {
	time.Sleep(timeout)
	return nil, nil
}
