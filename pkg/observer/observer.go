package observer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/rs/zerolog"
)

// Phase is the one-bit sigwait phase flag: 1 while a
// monitored process is inside the blocking wait-for-signal syscall, 0
// once it has returned from it.
type Phase int32

const (
	PhaseExiting  Phase = 0
	PhaseEntering Phase = 1
)

// Sample is one kernel-observed sigwait entry/exit event, expressed in
// monotonic nanoseconds. The real backend is a BPF probe attached to
// the sigwait syscall; Feed is this package's ingestion point —
// a real backend would push onto the same ring channel from its own
// poller goroutine.
type Sample struct {
	PID         int
	MonotonicNS uint64
	Phase       Phase
}

type record struct {
	wallNS int64 // atomic
	phase  int32 // atomic
}

// ringSize bounds the event sequence, which is infinite and
// non-restartable from the producer's perspective,
// but necessarily finite in memory. A full ring drops the incoming event
// rather than blocking the producer.
const ringSize = 4096

// Observer is the Deadline Observer: per-pid atomic
// (timestamp, phase) state, updated by a single background poller
// draining a ring-buffer-style event sequence. RecordFor looks the
// record up under a read lock and loads its fields atomically. When Available reports false, the timer fast path must
// degrade to miss-detection-disabled rather than fail.
type Observer struct {
	mu      sync.RWMutex
	records map[int]*record

	ring   chan Sample
	stopCh chan struct{}
	wg     sync.WaitGroup

	offsetNS  int64 // atomic; wall_ns = monotonic_ns + offsetNS
	available int32 // atomic bool
	logger    zerolog.Logger
}

// New returns an Observer with no calibrated offset and no running
// poller; call Calibrate then Start before Register.
func New() *Observer {
	return &Observer{
		records: make(map[int]*record),
		ring:    make(chan Sample, ringSize),
		stopCh:  make(chan struct{}),
		logger:  log.WithComponent("observer"),
	}
}

// Start launches the background poller that drains the ring and
// updates per-pid records. Marks the observer available.
func (o *Observer) Start() {
	atomic.StoreInt32(&o.available, 1)
	o.wg.Add(1)
	go o.drain()
}

// Stop halts the poller. RecordFor keeps serving the last values seen.
func (o *Observer) Stop() {
	atomic.StoreInt32(&o.available, 0)
	close(o.stopCh)
	o.wg.Wait()
}

// Available reports whether the observer backend is usable. The node
// agent's fast path consults this to decide whether miss detection is
// live or disabled.
func (o *Observer) Available() bool {
	return atomic.LoadInt32(&o.available) == 1
}

// Register adds pid to the set of monitored processes. Callers treat
// failure as non-fatal — this implementation cannot fail, but
// returns an error for symmetry with a real kernel-backed probe that
// could (e.g. an attach-to-pid syscall refusal).
func (o *Observer) Register(pid int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.records[pid]; !ok {
		o.records[pid] = &record{}
	}
	return nil
}

// Unregister removes pid from the monitored set.
func (o *Observer) Unregister(pid int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.records, pid)
}

// RecordFor returns the most recently observed (wall-clock timestamp,
// phase) pair for pid, and whether pid is known to the observer at
// all. It never blocks on the poller: it reads the atomic fields of the
// pid's record directly.
func (o *Observer) RecordFor(pid int) (time.Time, Phase, bool) {
	o.mu.RLock()
	r, ok := o.records[pid]
	o.mu.RUnlock()
	if !ok {
		return time.Time{}, PhaseExiting, false
	}
	ns := atomic.LoadInt64(&r.wallNS)
	phase := Phase(atomic.LoadInt32(&r.phase))
	if ns == 0 {
		return time.Time{}, phase, true
	}
	return time.Unix(0, ns), phase, true
}

// Feed pushes a raw kernel-monotonic sample into the ring. A full ring
// drops the sample rather than blocking the caller — the producer side
// of a real ring buffer never blocks either.
func (o *Observer) Feed(s Sample) {
	select {
	case o.ring <- s:
	default:
		o.logger.Warn().Int("pid", s.PID).Msg("observer ring full, dropping sample")
	}
}

func (o *Observer) drain() {
	defer o.wg.Done()
	for {
		select {
		case s := <-o.ring:
			o.apply(s)
		case <-o.stopCh:
			return
		}
	}
}

func (o *Observer) apply(s Sample) {
	wallNS := int64(s.MonotonicNS) + atomic.LoadInt64(&o.offsetNS)

	o.mu.RLock()
	r, ok := o.records[s.PID]
	o.mu.RUnlock()
	if !ok {
		return
	}
	atomic.StoreInt64(&r.wallNS, wallNS)
	atomic.StoreInt32(&r.phase, int32(s.Phase))
}

// RequireAvailable returns errUnavailable when the observer backend is
// not running. pkg/nodeagent calls this once at startup to decide
// whether to log a degraded-mode warning; it does not gate the fast
// path, which must keep delivering timers and statistics regardless.
func (o *Observer) RequireAvailable() error {
	if o.Available() {
		return nil
	}
	return errUnavailable
}

// errUnavailable is returned by RequireAvailable when the observer
// backend is down; pkg/nodeagent logs it and continues with miss
// detection disabled.
var errUnavailable = orcherr.Wrap(orcherr.Observer, "observer", errObserverUnavailable{})

type errObserverUnavailable struct{}

func (errObserverUnavailable) Error() string { return "observer backend unavailable" }
