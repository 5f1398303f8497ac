package transport

import (
	"net/http/httptest"
	"testing"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/controlplane"
	"github.com/stretchr/testify/require"
)

func TestClientServer_FetchScheduleRoundTrip(t *testing.T) {
	ingest, fault := installTwoNodeWorkload(t)
	orch := NewOrchestrator(ingest, fault)
	srv := NewServer(orch)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := NewClient(ts.URL)
	data, err := client.FetchSchedule("node1")
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestClientServer_SyncRoundTrip(t *testing.T) {
	ingest, fault := installTwoNodeWorkload(t)
	orch := NewOrchestrator(ingest, fault)
	srv := NewServer(orch)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := NewClient(ts.URL)
	result, err := client.Sync("node1")
	require.NoError(t, err)
	require.Equal(t, 0, result.Ack)

	result, err = client.Sync("node2")
	require.NoError(t, err)
	require.Equal(t, 1, result.Ack)
	require.False(t, result.Timestamp.IsZero())
}

func TestClientServer_ReportMissRoundTrip(t *testing.T) {
	ingest, _ := installTwoNodeWorkload(t)
	sink := &captureSink{}
	fault := controlplane.NewFaultEgress(sink, nil)
	orch := NewOrchestrator(ingest, fault)
	srv := NewServer(orch)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := NewClient(ts.URL)
	require.NoError(t, client.ReportMiss("node1", "t1"))
	require.Len(t, sink.events, 1)
}

func TestHandleFetchSchedule_RequiresNodeID(t *testing.T) {
	ingest, fault := installTwoNodeWorkload(t)
	orch := NewOrchestrator(ingest, fault)
	srv := NewServer(orch)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/v1/fetch_schedule")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 400, resp.StatusCode)
}
