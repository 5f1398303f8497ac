package controlplane

import (
	"errors"
	"sync"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/catalog"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/events"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/metrics"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/scheduler"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrWorkloadAlreadyInstalled is returned by AddSchedule when a workload
// with a different id is already active. A second, distinct workload is
// a hard rejection in this design; the caller must Remove the active one
// first.
var ErrWorkloadAlreadyInstalled = errors.New("a different workload is already installed")

// IngestStatus mirrors the two-valued accept/reject result of
// add_schedule: 0 on success, -1 on rejection.
type IngestStatus int

const (
	StatusAccepted IngestStatus = 0
	StatusRejected IngestStatus = -1
)

// ScheduleIngest is the orchestrator side of workload delivery: it
// accepts or rejects a declared workload, drives the Global Scheduler,
// and retains the one active workload's schedule tables for
// pkg/transport's FetchSchedule.
type ScheduleIngest struct {
	mu        sync.Mutex
	catalog   *catalog.Catalog
	scheduler *scheduler.Scheduler
	algo      scheduler.Algorithm
	broker    *events.Broker
	logger    zerolog.Logger

	active *types.Workload
}

// NewScheduleIngest returns a ScheduleIngest placing tasks against cat
// with algo. broker may be nil, in which case no events are published.
func NewScheduleIngest(cat *catalog.Catalog, algo scheduler.Algorithm, broker *events.Broker) *ScheduleIngest {
	return &ScheduleIngest{
		catalog:   cat,
		scheduler: scheduler.New(cat),
		algo:      algo,
		broker:    broker,
		logger:    log.WithComponent("controlplane"),
	}
}

// AddSchedule installs workload as the active workload, placing its
// tasks with the Global Scheduler. Re-installing the same workload id is
// idempotent and re-runs placement from scratch against the current
// catalog; installing a second, distinct workload id while one is
// already active is a hard rejection.
func (si *ScheduleIngest) AddSchedule(workload *types.Workload) (IngestStatus, error) {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.active != nil && si.active.ID != workload.ID {
		si.logger.Warn().
			Str("active_workload_id", si.active.ID).
			Str("rejected_workload_id", workload.ID).
			Msg("rejecting distinct workload while one is already installed")
		si.publish(events.EventWorkloadRejected, workload.ID, ErrWorkloadAlreadyInstalled.Error())
		metrics.WorkloadsRejectedTotal.Inc()
		return StatusRejected, ErrWorkloadAlreadyInstalled
	}

	logger := log.WithWorkloadID(workload.ID)

	si.scheduler.Clear()
	si.scheduler.SetTasks(workload.Tasks)
	if err := si.scheduler.Schedule(si.algo); err != nil {
		logger.Error().Err(err).Msg("scheduling failed, rejecting workload")
		si.publish(events.EventWorkloadRejected, workload.ID, err.Error())
		metrics.WorkloadsRejectedTotal.Inc()
		return StatusRejected, orcherr.Wrap(orcherr.Config, "controlplane.AddSchedule", err)
	}

	for _, tbl := range si.scheduler.SchedInfoMap() {
		tbl.WorkloadID = workload.ID
	}
	workload.HyperperiodUS = si.scheduler.HyperperiodUS()
	workload.Tables = si.scheduler.SchedInfoMap()
	workload.InstalledAt = time.Now()
	si.active = workload

	metrics.WorkloadsInstalledTotal.Inc()
	metrics.HyperperiodLengthUS.WithLabelValues(workload.ID).Set(float64(workload.HyperperiodUS))
	si.publish(events.EventWorkloadInstalled, workload.ID, "")
	logger.Info().
		Int("scheduled", si.scheduler.TotalScheduledTasks()).
		Int("unscheduled", si.scheduler.UnscheduledCount()).
		Uint64("hyperperiod_us", workload.HyperperiodUS).
		Msg("workload installed")
	return StatusAccepted, nil
}

// Active returns the currently installed workload, or nil if none.
func (si *ScheduleIngest) Active() *types.Workload {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.active
}

// Remove clears the active workload, allowing a subsequent AddSchedule
// to install a different workload id.
func (si *ScheduleIngest) Remove(workloadID string) error {
	si.mu.Lock()
	defer si.mu.Unlock()
	if si.active == nil || si.active.ID != workloadID {
		return orcherr.Wrap(orcherr.Config, "controlplane.Remove", errors.New("no such active workload"))
	}
	si.active = nil
	si.scheduler.Clear()
	return nil
}

func (si *ScheduleIngest) publish(t events.EventType, workloadID, message string) {
	if si.broker == nil {
		return
	}
	si.broker.Publish(&events.Event{
		ID:       uuid.NewString(),
		Type:     t,
		Message:  message,
		Metadata: map[string]string{"workload_id": workloadID},
	})
}

// FaultSink persists or forwards a fault event reported through
// FaultEgress. pkg/faultlog.Store satisfies it; a nil sink is valid and
// means FaultEgress only publishes to the event broker.
type FaultSink interface {
	Record(event *types.FaultEvent) error
}

// FaultEgress is the orchestrator side of notify_fault: a one-shot relay of a node agent's deadline-miss report
// into operator-visible state. There is no retry at this layer — the
// node agent owns its own retry policy, if any, before this call.
type FaultEgress struct {
	sink   FaultSink
	broker *events.Broker
	logger zerolog.Logger
}

// NewFaultEgress returns a FaultEgress recording into sink and
// publishing to broker. Either may be nil.
func NewFaultEgress(sink FaultSink, broker *events.Broker) *FaultEgress {
	return &FaultEgress{
		sink:   sink,
		broker: broker,
		logger: log.WithComponent("controlplane"),
	}
}

// NotifyFault records and publishes event, filling in ID/At if the
// caller left them zero. It always returns nil: an error from the sink
// is logged and swallowed, per the one-shot, no-retry contract.
func (fe *FaultEgress) NotifyFault(event *types.FaultEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if event.Kind == "" {
		event.Kind = types.FaultUnknown
	}

	fe.logger.Warn().
		Str("workload_id", event.WorkloadID).
		Str("node_id", event.NodeID).
		Str("task_name", event.TaskName).
		Str("kind", string(event.Kind)).
		Msg("fault reported")

	metrics.DeadlineMissesTotal.WithLabelValues(event.NodeID, event.TaskName, string(event.Kind)).Inc()

	if fe.sink != nil {
		if err := fe.sink.Record(event); err != nil {
			fe.logger.Error().Err(err).Str("fault_id", event.ID).Msg("failed to persist fault event")
		}
	}

	if fe.broker != nil {
		fe.broker.Publish(&events.Event{
			ID:      event.ID,
			Type:    events.EventTaskMiss,
			Message: string(event.Kind),
			Metadata: map[string]string{
				"workload_id": event.WorkloadID,
				"node_id":     event.NodeID,
				"task_name":   event.TaskName,
			},
		})
	}
	return nil
}
