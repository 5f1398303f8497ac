package faultlog

import (
	"testing"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := newStore(t)
	event := &types.FaultEvent{ID: "f1", WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1", Kind: types.FaultLate, At: time.Now()}

	require.NoError(t, s.Record(event))

	got, err := s.Get("f1")
	require.NoError(t, err)
	require.Equal(t, event.WorkloadID, got.WorkloadID)
	require.Equal(t, event.Kind, got.Kind)
}

func TestGet_UnknownIDErrors(t *testing.T) {
	s := newStore(t)
	_, err := s.Get("nonexistent")
	require.Error(t, err)
}

func TestListByWorkload_OrderedOldestFirst(t *testing.T) {
	s := newStore(t)
	now := time.Now()

	require.NoError(t, s.Record(&types.FaultEvent{ID: "f2", WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1", Kind: types.FaultOverrun, At: now.Add(2 * time.Second)}))
	require.NoError(t, s.Record(&types.FaultEvent{ID: "f1", WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1", Kind: types.FaultLate, At: now}))
	require.NoError(t, s.Record(&types.FaultEvent{ID: "f3", WorkloadID: "wl-2", NodeID: "node-b", TaskName: "t2", Kind: types.FaultKernelStuck, At: now}))

	events, err := s.ListByWorkload("wl-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "f1", events[0].ID)
	require.Equal(t, "f2", events[1].ID)
}

func TestCountByKind(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	require.NoError(t, s.Record(&types.FaultEvent{ID: "f1", WorkloadID: "wl-1", Kind: types.FaultLate, At: now}))
	require.NoError(t, s.Record(&types.FaultEvent{ID: "f2", WorkloadID: "wl-1", Kind: types.FaultLate, At: now}))
	require.NoError(t, s.Record(&types.FaultEvent{ID: "f3", WorkloadID: "wl-1", Kind: types.FaultOverrun, At: now}))

	counts, err := s.CountByKind("wl-1")
	require.NoError(t, err)
	require.Equal(t, 2, counts[types.FaultLate])
	require.Equal(t, 1, counts[types.FaultOverrun])
}
