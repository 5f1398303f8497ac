package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/scheduler"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	fault := NewFaultEgress(&recordingSink{}, nil)
	return NewServer(ingest, fault)
}

func TestHandleAddSchedule_Accepts(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(workloadDoc{
		ID: "wl-1",
		Tasks: []taskDoc{
			{Name: "t1", TargetNode: "node-a", PeriodUS: 10000, RuntimeUS: 1000, DeadlineUS: 10000, MemoryMB: 64},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/schedule", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp scheduleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, 0, resp.Status)
}

func TestHandleAddSchedule_RejectsSecondDistinctWorkload(t *testing.T) {
	s := newTestServer(t)

	first, _ := json.Marshal(workloadDoc{ID: "wl-1", Tasks: []taskDoc{
		{Name: "t1", TargetNode: "node-a", PeriodUS: 10000, RuntimeUS: 1000, DeadlineUS: 10000},
	}})
	req := httptest.NewRequest(http.MethodPost, "/v1/schedule", bytes.NewReader(first))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	second, _ := json.Marshal(workloadDoc{ID: "wl-2", Tasks: []taskDoc{
		{Name: "t2", TargetNode: "node-a", PeriodUS: 10000, RuntimeUS: 1000, DeadlineUS: 10000},
	}})
	req2 := httptest.NewRequest(http.MethodPost, "/v1/schedule", bytes.NewReader(second))
	w2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(w2, req2)

	require.Equal(t, http.StatusConflict, w2.Code)
	var resp scheduleResponse
	require.NoError(t, json.NewDecoder(w2.Body).Decode(&resp))
	require.Equal(t, -1, resp.Status)
}

func TestHandleAddSchedule_RejectsWrongMethod(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/schedule", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleAddSchedule_RejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/schedule", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleNotifyFault_Accepted(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(faultDoc{WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1", Kind: "late"})
	req := httptest.NewRequest(http.MethodPost, "/v1/fault", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleNotifyFault_NoFaultEgressConfigured(t *testing.T) {
	ingest := NewScheduleIngest(newCatalog(t), scheduler.TargetNodePriority, nil)
	s := NewServer(ingest, nil)

	body, _ := json.Marshal(faultDoc{WorkloadID: "wl-1", NodeID: "node-a", TaskName: "t1", Kind: "late"})
	req := httptest.NewRequest(http.MethodPost, "/v1/fault", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
