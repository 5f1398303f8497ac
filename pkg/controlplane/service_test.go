package controlplane

import (
	"testing"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/catalog"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/events"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/scheduler"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.LoadBytes([]byte(`
nodes:
  node-a:
    available_cpus: ["0", "1"]
    max_memory_mb: 4096
`)))
	return c
}

func oneTaskWorkload(id string) *types.Workload {
	return &types.Workload{
		ID: id,
		Tasks: []*types.Task{
			{Name: "t1", TargetNode: "node-a", CPUAffinity: types.AnyCPU, PeriodUS: 10000, RuntimeUS: 1000, DeadlineUS: 10000, MemoryMB: 64},
		},
	}
}

func TestAddSchedule_AcceptsFirstWorkload(t *testing.T) {
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	status, err := ingest.AddSchedule(oneTaskWorkload("wl-1"))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, status)
	require.NotNil(t, ingest.Active())
	require.Equal(t, "wl-1", ingest.Active().ID)
	require.NotEmpty(t, ingest.Active().Tables)
}

func TestAddSchedule_IdempotentOnSameWorkloadID(t *testing.T) {
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	_, err := ingest.AddSchedule(oneTaskWorkload("wl-1"))
	require.NoError(t, err)

	status, err := ingest.AddSchedule(oneTaskWorkload("wl-1"))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, status)
}

func TestAddSchedule_RejectsDistinctWorkloadWhileOneActive(t *testing.T) {
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	_, err := ingest.AddSchedule(oneTaskWorkload("wl-1"))
	require.NoError(t, err)

	status, err := ingest.AddSchedule(oneTaskWorkload("wl-2"))
	require.ErrorIs(t, err, ErrWorkloadAlreadyInstalled)
	require.Equal(t, StatusRejected, status)

	require.Equal(t, "wl-1", ingest.Active().ID)
}

func TestAddSchedule_RejectsEmptyTaskSet(t *testing.T) {
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	status, err := ingest.AddSchedule(&types.Workload{ID: "wl-empty"})
	require.Error(t, err)
	require.Equal(t, StatusRejected, status)
	require.Nil(t, ingest.Active())
}

func TestRemove_AllowsNewDistinctWorkload(t *testing.T) {
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	_, err := ingest.AddSchedule(oneTaskWorkload("wl-1"))
	require.NoError(t, err)

	require.NoError(t, ingest.Remove("wl-1"))
	require.Nil(t, ingest.Active())

	status, err := ingest.AddSchedule(oneTaskWorkload("wl-2"))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, status)
}

func TestRemove_UnknownWorkloadErrors(t *testing.T) {
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	require.Error(t, ingest.Remove("nonexistent"))
}

func TestAddSchedule_PublishesEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, broker)
	_, err := ingest.AddSchedule(oneTaskWorkload("wl-1"))
	require.NoError(t, err)

	evt := <-sub
	require.Equal(t, events.EventWorkloadInstalled, evt.Type)
	require.Equal(t, "wl-1", evt.Metadata["workload_id"])
}

type recordingSink struct {
	events []*types.FaultEvent
}

func (r *recordingSink) Record(event *types.FaultEvent) error {
	r.events = append(r.events, event)
	return nil
}

func TestNotifyFault_FillsIDAndTimestamp(t *testing.T) {
	sink := &recordingSink{}
	fe := NewFaultEgress(sink, nil)

	event := &types.FaultEvent{WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1", Kind: types.FaultLate}
	require.NoError(t, fe.NotifyFault(event))

	require.Len(t, sink.events, 1)
	require.NotEmpty(t, sink.events[0].ID)
	require.False(t, sink.events[0].At.IsZero())
}

func TestNotifyFault_DefaultsUnknownKind(t *testing.T) {
	sink := &recordingSink{}
	fe := NewFaultEgress(sink, nil)

	event := &types.FaultEvent{WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1"}
	require.NoError(t, fe.NotifyFault(event))
	require.Equal(t, types.FaultUnknown, sink.events[0].Kind)
}

func TestNotifyFault_PublishesEvenWithoutSink(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	fe := NewFaultEgress(nil, broker)
	require.NoError(t, fe.NotifyFault(&types.FaultEvent{WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1", Kind: types.FaultOverrun}))

	evt := <-sub
	require.Equal(t, events.EventTaskMiss, evt.Type)
	require.Equal(t, "node-a", evt.Metadata["node_id"])
}
