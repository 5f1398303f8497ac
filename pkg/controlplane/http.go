package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/rs/zerolog"
)

// Server exposes ScheduleIngest and FaultEgress over HTTP/JSON. The
// only binary layout these services commit to is the serialized
// schedule table, which pkg/wire handles separately for
// pkg/transport's FetchSchedule.
type Server struct {
	ingest *ScheduleIngest
	fault  *FaultEgress
	mux    *http.ServeMux
	logger zerolog.Logger
	srv    *http.Server
}

// NewServer wires ingest and fault onto a fresh mux. Either may be nil,
// in which case the corresponding endpoints reply 503.
func NewServer(ingest *ScheduleIngest, fault *FaultEgress) *Server {
	s := &Server{
		ingest: ingest,
		fault:  fault,
		mux:    http.NewServeMux(),
		logger: log.WithComponent("controlplane"),
	}
	s.mux.HandleFunc("/v1/schedule", s.handleAddSchedule)
	s.mux.HandleFunc("/v1/fault", s.handleNotifyFault)
	return s
}

// Handler returns the HTTP handler for embedding in another server, or
// for httptest in this package's own tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until the process exits or Stop is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("control plane listening")
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type taskDoc struct {
	Name        string `json:"name"`
	TargetNode  string `json:"target_node,omitempty"`
	Policy      string `json:"policy,omitempty"`
	Priority    int    `json:"priority"`
	PeriodUS    uint32 `json:"period_us"`
	RuntimeUS   uint32 `json:"runtime_us"`
	DeadlineUS  uint32 `json:"deadline_us"`
	ReleaseUS   uint32 `json:"release_us"`
	CPUAffinity string `json:"cpu_affinity,omitempty"`
	MemoryMB    int    `json:"memory_mb"`
	MaxDMiss    int    `json:"max_d_miss"`
}

type workloadDoc struct {
	ID    string    `json:"id"`
	Tasks []taskDoc `json:"tasks"`
}

type scheduleResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.ingest == nil {
		http.Error(w, "schedule ingest not available", http.StatusServiceUnavailable)
		return
	}

	var doc workloadDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeSchedule(w, http.StatusBadRequest, scheduleResponse{Status: int(StatusRejected), Error: err.Error()})
		return
	}

	workload := &types.Workload{ID: doc.ID}
	for _, td := range doc.Tasks {
		workload.Tasks = append(workload.Tasks, &types.Task{
			Name:        td.Name,
			TargetNode:  td.TargetNode,
			Policy:      policyFromString(td.Policy),
			Priority:    td.Priority,
			PeriodUS:    td.PeriodUS,
			RuntimeUS:   td.RuntimeUS,
			DeadlineUS:  td.DeadlineUS,
			ReleaseUS:   td.ReleaseUS,
			CPUAffinity: cpuAffinityOrAny(td.CPUAffinity),
			MemoryMB:    td.MemoryMB,
			MaxDMiss:    td.MaxDMiss,
		})
	}

	status, err := s.ingest.AddSchedule(workload)
	if err != nil {
		writeSchedule(w, http.StatusConflict, scheduleResponse{Status: int(status), Error: err.Error()})
		return
	}
	writeSchedule(w, http.StatusOK, scheduleResponse{Status: int(status)})
}

func writeSchedule(w http.ResponseWriter, code int, resp scheduleResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func policyFromString(s string) types.SchedPolicy {
	switch s {
	case "fifo":
		return types.SchedFIFO
	case "round-robin", "rr":
		return types.SchedRR
	default:
		return types.SchedNormal
	}
}

func cpuAffinityOrAny(s string) string {
	if s == "" {
		return types.AnyCPU
	}
	return s
}

type faultDoc struct {
	WorkloadID string `json:"workload_id"`
	NodeID     string `json:"node_id"`
	TaskName   string `json:"task_name"`
	Kind       string `json:"kind"`
}

func (s *Server) handleNotifyFault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.fault == nil {
		http.Error(w, "fault egress not available", http.StatusServiceUnavailable)
		return
	}

	var doc faultDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := &types.FaultEvent{
		WorkloadID: doc.WorkloadID,
		NodeID:     doc.NodeID,
		TaskName:   doc.TaskName,
		Kind:       types.FaultKind(doc.Kind),
	}
	if err := s.fault.NotifyFault(event); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
