package observer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterUnregister_UnknownPidNotFound(t *testing.T) {
	o := New()
	_, _, ok := o.RecordFor(42)
	require.False(t, ok)

	require.NoError(t, o.Register(42))
	_, phase, ok := o.RecordFor(42)
	require.True(t, ok)
	require.Equal(t, PhaseExiting, phase)

	o.Unregister(42)
	_, _, ok = o.RecordFor(42)
	require.False(t, ok)
}

func TestFeedAndDrain_UpdatesRecord(t *testing.T) {
	o := New()
	o.Calibrate(func() uint64 { return 1000 })
	o.Start()
	defer o.Stop()
	require.NoError(t, o.Register(7))

	o.Feed(Sample{PID: 7, MonotonicNS: 1000, Phase: PhaseEntering})

	require.Eventually(t, func() bool {
		_, phase, ok := o.RecordFor(7)
		return ok && phase == PhaseEntering
	}, time.Second, time.Millisecond)
}

func TestFeed_UnknownPidIgnored(t *testing.T) {
	o := New()
	o.Start()
	defer o.Stop()

	o.Feed(Sample{PID: 99, MonotonicNS: 1, Phase: PhaseEntering})

	require.Never(t, func() bool {
		_, _, ok := o.RecordFor(99)
		return ok
	}, 50*time.Millisecond, time.Millisecond)
}

func TestAvailable_FalseBeforeStartAndAfterStop(t *testing.T) {
	o := New()
	require.False(t, o.Available())
	require.Error(t, o.RequireAvailable())

	o.Start()
	require.True(t, o.Available())
	require.NoError(t, o.RequireAvailable())

	o.Stop()
	require.False(t, o.Available())
}

func TestCalibrate_OffsetAppliedToMonotonicSamples(t *testing.T) {
	o := New()
	fixedMono := uint64(5_000_000_000)
	o.Calibrate(func() uint64 { return fixedMono })
	o.Start()
	defer o.Stop()
	require.NoError(t, o.Register(1))

	before := time.Now()
	o.Feed(Sample{PID: 1, MonotonicNS: fixedMono, Phase: PhaseEntering})

	require.Eventually(t, func() bool {
		ts, _, ok := o.RecordFor(1)
		return ok && !ts.IsZero() && ts.After(before.Add(-time.Minute)) && ts.Before(before.Add(time.Minute))
	}, time.Second, time.Millisecond)
}
