package procscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeComm(t *testing.T, root, pid, tid, comm string) {
	t.Helper()
	dir := filepath.Join(root, pid, "task", tid)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0644))
}

func TestResolveByName_FindsThreadInMainProcess(t *testing.T) {
	root := t.TempDir()
	writeComm(t, root, "100", "100", "control-loop")

	r := NewWithRoot(root)
	tid, found, err := r.ResolveByName("control-loop")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 100, tid)
}

func TestResolveByName_FindsNonMainThread(t *testing.T) {
	root := t.TempDir()
	writeComm(t, root, "100", "100", "main")
	writeComm(t, root, "100", "101", "worker-a")
	writeComm(t, root, "100", "102", "worker-b")

	r := NewWithRoot(root)
	tid, found, err := r.ResolveByName("worker-b")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 102, tid)
}

func TestResolveByName_NoMatchReturnsNotFoundWithoutError(t *testing.T) {
	root := t.TempDir()
	writeComm(t, root, "100", "100", "main")

	r := NewWithRoot(root)
	_, found, err := r.ResolveByName("nonexistent")
	require.NoError(t, err)
	require.False(t, found)
}

func TestResolveByName_MatchesTruncatedLongNames(t *testing.T) {
	root := t.TempDir()
	// comm files are truncated to 15 bytes by the kernel.
	writeComm(t, root, "100", "100", "a-very-long-tas")

	r := NewWithRoot(root)
	tid, found, err := r.ResolveByName("a-very-long-task-name-indeed")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 100, tid)
}

func TestResolveByName_IgnoresNonNumericEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "self"), 0755))
	writeComm(t, root, "100", "100", "main")

	r := NewWithRoot(root)
	_, found, err := r.ResolveByName("main")
	require.NoError(t, err)
	require.True(t, found)
}
