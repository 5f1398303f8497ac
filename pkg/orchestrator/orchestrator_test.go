package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/wire"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestNew_RejectsUnknownAlgorithm(t *testing.T) {
	_, err := New(Config{Algorithm: "round-robin"})
	require.Error(t, err)
}

func TestNew_DefaultNodeWithoutCatalog(t *testing.T) {
	orch, err := New(Config{})
	require.NoError(t, err)

	_, ok := orch.catalog.Get("default_node")
	require.True(t, ok)
	require.Equal(t, 1, orch.catalog.Count())
}

func TestOrchestrator_InstallAndFetchEndToEnd(t *testing.T) {
	path := writeCatalog(t, `
nodes:
  node1:
    available_cpus: ["0", "1", "2", "3"]
    max_memory_mb: 4096
`)
	orch, err := New(Config{CatalogPath: path})
	require.NoError(t, err)

	status, err := orch.Ingest().AddSchedule(&types.Workload{
		ID: "wl-e2e",
		Tasks: []*types.Task{
			{Name: "t1", TargetNode: "node1", CPUAffinity: types.AnyCPU, PeriodUS: 100000, RuntimeUS: 10000, DeadlineUS: 90000, MemoryMB: 64},
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, status)

	data, err := orch.NodeTransport().FetchSchedule("node1")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	tbl, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "wl-e2e", tbl.WorkloadID)
	require.EqualValues(t, 100000, tbl.HyperperiodUS)
	require.Len(t, tbl.Tasks, 1)
	require.Equal(t, "node1", tbl.Tasks[0].AssignedNode)
	require.Equal(t, "3", tbl.Tasks[0].AssignedCPU)
}

func TestOrchestrator_FaultLedgerReceivesMisses(t *testing.T) {
	path := writeCatalog(t, `
nodes:
  node1:
    available_cpus: ["0"]
    max_memory_mb: 4096
`)
	orch, err := New(Config{CatalogPath: path, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer orch.FaultLog().Close()

	_, err = orch.Ingest().AddSchedule(&types.Workload{
		ID: "wl-faults",
		Tasks: []*types.Task{
			{Name: "t1", TargetNode: "node1", CPUAffinity: types.AnyCPU, PeriodUS: 10000, RuntimeUS: 1000, DeadlineUS: 10000},
		},
	})
	require.NoError(t, err)

	require.NoError(t, orch.NodeTransport().ReportMiss("node1", "t1"))

	faults, err := orch.FaultLog().ListByWorkload("wl-faults")
	require.NoError(t, err)
	require.Len(t, faults, 1)
	require.Equal(t, "t1", faults[0].TaskName)
}
