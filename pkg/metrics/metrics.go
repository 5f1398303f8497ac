package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog metrics
	NodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timpani_nodes_total",
			Help: "Total number of nodes currently loaded in the catalog",
		},
	)

	// Scheduler metrics
	WorkloadsInstalledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timpani_workloads_installed_total",
			Help: "Total number of workloads accepted by ScheduleIngest",
		},
	)

	WorkloadsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timpani_workloads_rejected_total",
			Help: "Total number of workloads rejected by ScheduleIngest",
		},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timpani_scheduling_latency_seconds",
			Help:    "Time taken to place every task of a workload",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksUnscheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timpani_tasks_unscheduled_total",
			Help: "Total number of declared tasks left unscheduled by the Global Scheduler",
		},
	)

	NodeUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timpani_node_utilization_ratio",
			Help: "Aggregate utilization (sum of runtime/period) of tasks placed on a node",
		},
		[]string{"node_id"},
	)

	CPUUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timpani_cpu_utilization_ratio",
			Help: "Utilization of tasks placed on one CPU of one node",
		},
		[]string{"node_id", "cpu"},
	)

	HyperperiodLengthUS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timpani_hyperperiod_length_us",
			Help: "Hyperperiod length of the active workload, in microseconds",
		},
		[]string{"workload_id"},
	)

	// Node Agent Runtime metrics
	DeadlineMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timpani_deadline_misses_total",
			Help: "Total number of deadline misses by classification",
		},
		[]string{"node_id", "task_name", "kind"},
	)

	HyperperiodCyclesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timpani_hyperperiod_cycles_completed_total",
			Help: "Total number of hyperperiod boundaries crossed on a node",
		},
		[]string{"node_id"},
	)

	// Sync barrier metrics
	SyncBarrierLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timpani_sync_barrier_latency_seconds",
			Help:    "Time from a node's first sync poll to receiving ack=1",
			Buckets: prometheus.DefBuckets,
		},
	)

	NodesSynced = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timpani_nodes_synced",
			Help: "Number of nodes that have crossed the sync barrier for the active workload",
		},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(WorkloadsInstalledTotal)
	prometheus.MustRegister(WorkloadsRejectedTotal)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(TasksUnscheduledTotal)
	prometheus.MustRegister(NodeUtilization)
	prometheus.MustRegister(CPUUtilization)
	prometheus.MustRegister(HyperperiodLengthUS)
	prometheus.MustRegister(DeadlineMissesTotal)
	prometheus.MustRegister(HyperperiodCyclesCompletedTotal)
	prometheus.MustRegister(SyncBarrierLatency)
	prometheus.MustRegister(NodesSynced)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
