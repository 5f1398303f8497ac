package types

import "time"

// SchedPolicy is the OS scheduling class applied to a task's worker thread.
type SchedPolicy string

const (
	SchedNormal SchedPolicy = "normal"
	SchedFIFO   SchedPolicy = "fifo"
	SchedRR     SchedPolicy = "round-robin"
)

// AnyCPU is the affinity value meaning "let the scheduler pick a CPU".
const AnyCPU = "any"

// Task is a declared periodic task as delivered by the upstream control
// plane, before placement.
type Task struct {
	Name        string // unique, <=16 printable ASCII chars, used for process lookup
	TargetNode  string // optional; empty means auto-assign
	Policy      SchedPolicy
	Priority    int // static priority, [0,99]
	PeriodUS    uint32
	RuntimeUS   uint32
	DeadlineUS  uint32
	ReleaseUS   uint32 // release offset inside each period, < PeriodUS
	CPUAffinity string // "any" or a concrete CPU identifier
	MemoryMB    int
	MaxDMiss    int // allowable consecutive deadline misses, >=0
}

// Utilization returns runtime/period, or 0 for a degenerate zero-period task.
func (t *Task) Utilization() float64 {
	if t.PeriodUS == 0 {
		return 0
	}
	return float64(t.RuntimeUS) / float64(t.PeriodUS)
}

// ScheduledTask is a Task after placement: it carries the node and CPU the
// Global Scheduler assigned it to.
type ScheduledTask struct {
	Task
	AssignedNode string // non-empty; member of the catalog
	AssignedCPU  string // concrete CPU identifier on AssignedNode
}

// DeadlineNS converts the task's microsecond deadline to nanoseconds, the
// unit the node agent adds to a release instant to get the deadline it
// compares the observer's wall-clock timestamps against.
func (st *ScheduledTask) DeadlineNS() uint64 {
	return uint64(st.DeadlineUS) * 1000
}

// Node is a compute node in the catalog.
type Node struct {
	ID            string
	AvailableCPUs []string // ordered, distinct
	MaxMemoryMB   int
	Architecture  string
	Location      string
	Description   string
}

// HasCPU reports whether cpu is a member of the node's CPU inventory.
func (n *Node) HasCPU(cpu string) bool {
	for _, c := range n.AvailableCPUs {
		if c == cpu {
			return true
		}
	}
	return false
}

// Workload is the unit the upstream control plane installs as a whole: a
// named set of declared tasks plus, once scheduled, a hyperperiod and a
// per-node schedule table.
type Workload struct {
	ID            string
	Tasks         []*Task
	HyperperiodUS uint64
	Tables        map[string]*ScheduleTable // node id -> table
	InstalledAt   time.Time
}

// ScheduleTable is the immutable, fully-substituted per-node output of one
// scheduling cycle.
type ScheduleTable struct {
	WorkloadID    string
	HyperperiodUS uint64
	Tasks         []*ScheduledTask
}

// FaultKind enumerates the deadline-miss classifications a node agent can
// report, plus the sentinel UNKNOWN kind carried by FaultEgress messages.
type FaultKind string

const (
	FaultUnknown     FaultKind = "UNKNOWN"
	FaultOverrun     FaultKind = "overrun"      // still inside the job, not in sigwait, at the deadline instant
	FaultLate        FaultKind = "late"         // entered sigwait after the deadline instant
	FaultKernelStuck FaultKind = "kernel-stuck" // observer timestamp did not advance between cycles
)

// FaultEvent is the (workload, node, task, kind) tuple reported by a node
// agent and relayed upstream via FaultEgress.
type FaultEvent struct {
	ID         string
	WorkloadID string
	NodeID     string
	TaskName   string
	Kind       FaultKind
	At         time.Time
}

// HyperperiodState is the node-side runtime bookkeeping for one installed
// schedule: cycle progress and deadline-miss counters across the whole
// workload.
type HyperperiodState struct {
	WorkloadID      string
	HyperperiodUS   uint64
	StartedAt       time.Time // set at timer-arming moment, not before
	CompletedCycles uint64
	CycleMisses     uint64
	TotalMisses     uint64
	TaskCount       int
}
