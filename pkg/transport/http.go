package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/rs/zerolog"
)

// Server exposes an Orchestrator's three node-facing operations over
// HTTP/JSON, in the same style as pkg/controlplane's Server: one
// net/http.ServeMux, one handler per operation.
type Server struct {
	orch   *Orchestrator
	mux    *http.ServeMux
	logger zerolog.Logger
	srv    *http.Server
}

// NewServer wires orch onto a fresh mux.
func NewServer(orch *Orchestrator) *Server {
	s := &Server{
		orch:   orch,
		mux:    http.NewServeMux(),
		logger: log.WithComponent("transport"),
	}
	s.mux.HandleFunc("/v1/fetch_schedule", s.handleFetchSchedule)
	s.mux.HandleFunc("/v1/sync", s.handleSync)
	s.mux.HandleFunc("/v1/report_miss", s.handleReportMiss)
	return s
}

// Handler returns the HTTP handler for embedding or for httptest.
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
	s.logger.Info().Str("addr", addr).Msg("node transport listening")
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleFetchSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	nodeID := r.URL.Query().Get("node_id")
	if nodeID == "" {
		http.Error(w, "node_id required", http.StatusBadRequest)
		return
	}

	data, err := s.orch.FetchSchedule(nodeID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type syncResponse struct {
	Ack           int   `json:"ack"`
	TimestampSec  int64 `json:"timestamp_sec"`
	TimestampNsec int64 `json:"timestamp_nsec"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	nodeID := r.URL.Query().Get("node_id")
	if nodeID == "" {
		http.Error(w, "node_id required", http.StatusBadRequest)
		return
	}

	ack, ts, err := s.orch.Sync(nodeID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	resp := syncResponse{Ack: ack}
	if ack == 1 {
		resp.TimestampSec = ts.Unix()
		resp.TimestampNsec = int64(ts.Nanosecond())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

type reportMissDoc struct {
	NodeID   string `json:"node_id"`
	TaskName string `json:"task_name"`
}

func (s *Server) handleReportMiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var doc reportMissDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.orch.ReportMiss(doc.NodeID, doc.TaskName); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
