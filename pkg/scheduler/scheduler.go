package scheduler

import (
	"errors"
	"sort"
	"strconv"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/catalog"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/hyperperiod"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/metrics"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/rs/zerolog"
)

const (
	perCPUUtilizationCap  = 0.90
	perNodeUtilizationCap = 1.0
	maxTaskNameLen        = 16
)

// Scheduler is the Global Scheduler. It owns the declared task set and
// the per-node schedule tables produced by the last Schedule call; the
// Node Catalog it reads nodes from is owned elsewhere (pkg/catalog).
//
// Scheduler is not safe for concurrent use by multiple callers: SetTasks,
// Schedule and Clear assume a single-threaded caller, serialized by the
// control plane's install mutex.
type Scheduler struct {
	catalog *catalog.Catalog
	logger  zerolog.Logger

	tasks []*types.Task
	algo  Algorithm

	tables      map[string]*types.ScheduleTable
	nodeUtil    map[string]float64
	cpuUtil     map[string]map[string]float64
	nodeMemUsed map[string]int
	usedCPUs    map[string]map[string]bool

	hyperperiodUS    uint64
	unscheduledCount int
}

// New returns a Scheduler reading nodes from cat.
func New(cat *catalog.Catalog) *Scheduler {
	return &Scheduler{
		catalog: cat,
		logger:  log.WithComponent("scheduler"),
	}
}

// SetTasks replaces the declared task set to be placed by the next
// Schedule call.
func (s *Scheduler) SetTasks(tasks []*types.Task) {
	s.tasks = tasks
}

// Clear discards the task set and any schedule tables produced so far.
func (s *Scheduler) Clear() {
	s.tasks = nil
	s.tables = nil
	s.nodeUtil = nil
	s.cpuUtil = nil
	s.nodeMemUsed = nil
	s.usedCPUs = nil
	s.hyperperiodUS = 0
	s.unscheduledCount = 0
}

// HasSchedules reports whether the last Schedule call produced at least
// one populated schedule table.
func (s *Scheduler) HasSchedules() bool {
	return len(s.tables) > 0
}

// TotalScheduledTasks returns the number of tasks placed across every
// node's schedule table by the last Schedule call.
func (s *Scheduler) TotalScheduledTasks() int {
	total := 0
	for _, tbl := range s.tables {
		total += len(tbl.Tasks)
	}
	return total
}

// UnscheduledCount returns the number of declared tasks the last
// Schedule call was unable to place.
func (s *Scheduler) UnscheduledCount() int {
	return s.unscheduledCount
}

// SchedInfoMap returns the per-node schedule tables produced by the last
// Schedule call, keyed by node id.
func (s *Scheduler) SchedInfoMap() map[string]*types.ScheduleTable {
	return s.tables
}

// HyperperiodUS returns the hyperperiod of the last Schedule call's
// placed tasks.
func (s *Scheduler) HyperperiodUS() uint64 {
	return s.hyperperiodUS
}

func (s *Scheduler) reset() {
	s.tables = make(map[string]*types.ScheduleTable)
	s.nodeUtil = make(map[string]float64)
	s.cpuUtil = make(map[string]map[string]float64)
	s.nodeMemUsed = make(map[string]int)
	s.usedCPUs = make(map[string]map[string]bool)
	s.hyperperiodUS = 0
	s.unscheduledCount = 0
}

// Schedule places every declared task using algo and rebuilds the
// per-node schedule tables. It is the single placement entry point.
// On any failure the previous schedule state is discarded: no stale or
// partial tables survive a failed call.
func (s *Scheduler) Schedule(algo Algorithm) error {
	s.algo = algo
	s.reset()

	if len(s.tasks) == 0 {
		return orcherr.Wrap(orcherr.Config, "scheduler.Schedule", errors.New("empty task set"))
	}

	timer := metrics.NewTimer()

	nodes := s.catalog.All()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	if len(nodes) == 0 {
		return orcherr.Wrap(orcherr.Config, "scheduler.Schedule", errors.New("no nodes in catalog"))
	}
	nodeByID := make(map[string]*types.Node, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}

	switch algo {
	case TargetNodePriority:
		s.scheduleTargetNodePriority(nodeByID)
	case BestFitDecreasing:
		s.scheduleBestFitDecreasing(nodes)
	case LeastLoaded:
		s.scheduleLeastLoaded(nodes)
	default:
		s.reset()
		return orcherr.Wrap(orcherr.Config, "scheduler.Schedule", errors.New("unknown algorithm"))
	}

	if len(s.tables) == 0 {
		s.reset()
		return orcherr.Wrap(orcherr.Config, "scheduler.Schedule", errors.New("no tasks could be placed"))
	}

	var periods []uint64
	for _, tbl := range s.tables {
		for _, st := range tbl.Tasks {
			periods = append(periods, uint64(st.PeriodUS))
		}
	}
	s.hyperperiodUS = hyperperiod.Calculate(periods)
	for _, tbl := range s.tables {
		tbl.HyperperiodUS = s.hyperperiodUS
	}

	timer.ObserveDuration(metrics.SchedulingLatency)
	s.logger.Info().
		Str("algorithm", algo.String()).
		Int("scheduled", s.TotalScheduledTasks()).
		Int("unscheduled", s.unscheduledCount).
		Uint64("hyperperiod_us", s.hyperperiodUS).
		Msg("scheduling cycle complete")
	return nil
}

func (s *Scheduler) scheduleTargetNodePriority(nodeByID map[string]*types.Node) {
	for _, task := range s.tasks {
		if task.TargetNode == "" {
			s.reject(task, "no target_node declared for target-node-priority algorithm")
			continue
		}
		node, ok := nodeByID[task.TargetNode]
		if !ok {
			s.reject(task, "declared target_node not present in catalog")
			continue
		}
		if !s.memoryFeasible(task, node) {
			s.reject(task, "insufficient memory budget on target node")
			continue
		}

		if task.CPUAffinity != types.AnyCPU {
			if !node.HasCPU(task.CPUAffinity) {
				s.reject(task, "declared cpu_affinity not present on target node")
				continue
			}
			if s.cpuUtilOf(node.ID, task.CPUAffinity)+task.Utilization() > perCPUUtilizationCap {
				s.reject(task, "declared cpu_affinity exceeds 0.90 utilization cap")
				continue
			}
			s.place(task, node, task.CPUAffinity)
			continue
		}

		placed := false
		for _, cpu := range sortCPUsDescending(node.AvailableCPUs) {
			if s.cpuUtilOf(node.ID, cpu)+task.Utilization() <= perCPUUtilizationCap {
				s.place(task, node, cpu)
				placed = true
				break
			}
		}
		if !placed {
			s.reject(task, "all CPUs on target node exceed 0.90 utilization cap")
		}
	}
}

func (s *Scheduler) scheduleBestFitDecreasing(nodes []*types.Node) {
	sorted := make([]*types.Task, len(s.tasks))
	copy(sorted, s.tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RuntimeUS > sorted[j].RuntimeUS
	})

	for _, task := range sorted {
		candidates := nodes
		if task.TargetNode != "" {
			candidates = filterNodeByID(nodes, task.TargetNode)
		}

		var best *types.Node
		bestUtil := -1.0
		for _, node := range candidates {
			if !s.memoryFeasible(task, node) {
				continue
			}
			projected := s.nodeUtil[node.ID] + task.Utilization()
			if projected > perNodeUtilizationCap {
				continue
			}
			if projected > bestUtil {
				bestUtil = projected
				best = node
			}
		}
		if best == nil {
			s.reject(task, "no node fits within 1.0 utilization cap (best-fit-decreasing)")
			continue
		}
		cpu, ok := s.consumeHeadCPU(best)
		if !ok {
			s.reject(task, "no free CPU left on selected node")
			continue
		}
		s.place(task, best, cpu)
	}
}

func (s *Scheduler) scheduleLeastLoaded(nodes []*types.Node) {
	for _, task := range s.tasks {
		var best *types.Node
		bestUtil := -1.0
		for _, node := range nodes {
			if !s.memoryFeasible(task, node) {
				continue
			}
			if task.CPUAffinity != types.AnyCPU && !node.HasCPU(task.CPUAffinity) {
				continue
			}
			projected := s.nodeUtil[node.ID] + task.Utilization()
			if projected > perNodeUtilizationCap {
				continue
			}
			if best == nil || s.nodeUtil[node.ID] < bestUtil {
				bestUtil = s.nodeUtil[node.ID]
				best = node
			}
		}
		if best == nil {
			s.reject(task, "no feasible node under least-loaded placement")
			continue
		}
		cpu, ok := s.consumeHeadCPU(best)
		if !ok {
			s.reject(task, "no free CPU left on selected node")
			continue
		}
		s.place(task, best, cpu)
	}
}

func (s *Scheduler) place(task *types.Task, node *types.Node, cpu string) {
	scheduled := &types.ScheduledTask{
		Task:         *task,
		AssignedNode: node.ID,
		AssignedCPU:  cpu,
	}
	scheduled.Task.Name = truncateName(task.Name)

	tbl, ok := s.tables[node.ID]
	if !ok {
		tbl = &types.ScheduleTable{WorkloadID: ""}
		s.tables[node.ID] = tbl
	}
	tbl.Tasks = append(tbl.Tasks, scheduled)

	s.nodeUtil[node.ID] += task.Utilization()
	s.nodeMemUsed[node.ID] += task.MemoryMB
	s.addCPUUtil(node.ID, cpu, task.Utilization())
	if s.usedCPUs[node.ID] == nil {
		s.usedCPUs[node.ID] = make(map[string]bool)
	}
	s.usedCPUs[node.ID][cpu] = true

	metrics.NodeUtilization.WithLabelValues(node.ID).Set(s.nodeUtil[node.ID])
	metrics.CPUUtilization.WithLabelValues(node.ID, cpu).Set(s.cpuUtilOf(node.ID, cpu))

	s.logger.Debug().
		Str("task_name", task.Name).
		Str("node_id", node.ID).
		Str("cpu", cpu).
		Float64("task_utilization", task.Utilization()).
		Msg("task placed")
}

func (s *Scheduler) reject(task *types.Task, reason string) {
	s.unscheduledCount++
	metrics.TasksUnscheduledTotal.Inc()
	s.logger.Warn().
		Str("task_name", task.Name).
		Str("reason", reason).
		Msg("task left unscheduled")
}

func (s *Scheduler) memoryFeasible(task *types.Task, node *types.Node) bool {
	if node.MaxMemoryMB <= 0 {
		return true
	}
	return s.nodeMemUsed[node.ID]+task.MemoryMB <= node.MaxMemoryMB
}

func (s *Scheduler) cpuUtilOf(nodeID, cpu string) float64 {
	if m, ok := s.cpuUtil[nodeID]; ok {
		return m[cpu]
	}
	return 0
}

func (s *Scheduler) addCPUUtil(nodeID, cpu string, delta float64) {
	if s.cpuUtil[nodeID] == nil {
		s.cpuUtil[nodeID] = make(map[string]float64)
	}
	s.cpuUtil[nodeID][cpu] += delta
}

// consumeHeadCPU returns the first CPU in node's declared order that has
// not yet been exclusively consumed on this node, per the best-fit-
// decreasing and least-loaded "consume head CPU" rule.
func (s *Scheduler) consumeHeadCPU(node *types.Node) (string, bool) {
	used := s.usedCPUs[node.ID]
	for _, cpu := range node.AvailableCPUs {
		if used == nil || !used[cpu] {
			return cpu, true
		}
	}
	return "", false
}

func filterNodeByID(nodes []*types.Node, id string) []*types.Node {
	for _, n := range nodes {
		if n.ID == id {
			return []*types.Node{n}
		}
	}
	return nil
}

func truncateName(name string) string {
	r := []rune(name)
	if len(r) <= maxTaskNameLen {
		return name
	}
	return string(r[:maxTaskNameLen])
}

// sortCPUsDescending orders a node's CPU list highest-id-first for smart
// packing. CPU identifiers that parse as integers sort numerically;
// non-numeric identifiers fall back to a reverse lexicographic order.
func sortCPUsDescending(cpus []string) []string {
	out := make([]string, len(cpus))
	copy(out, cpus)
	sort.Slice(out, func(i, j int) bool {
		ni, erri := strconv.Atoi(out[i])
		nj, errj := strconv.Atoi(out[j])
		if erri == nil && errj == nil {
			return ni > nj
		}
		return out[i] > out[j]
	})
	return out
}
