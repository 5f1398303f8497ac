package procscan

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/rs/zerolog"
)

// commMaxLen mirrors the kernel's TASK_COMM_LEN - 1: /proc/pid/task/tid/comm
// is truncated to this many bytes, so a match must compare against the
// same truncation or a legitimately longer name will never match.
const commMaxLen = 15

// Resolver resolves a task name to an OS thread identifier by scanning
// /proc: every process's thread list is searched, not just the main
// thread, and the first thread whose name equals the task name wins.
type Resolver struct {
	root   string
	logger zerolog.Logger
}

// New returns a Resolver scanning the real /proc filesystem.
func New() *Resolver {
	return &Resolver{root: "/proc", logger: log.WithComponent("procscan")}
}

// NewWithRoot returns a Resolver scanning an arbitrary root, so tests
// can substitute a fabricated /proc-shaped directory tree.
func NewWithRoot(root string) *Resolver {
	return &Resolver{root: root, logger: log.WithComponent("procscan")}
}

// ResolveByName searches every process's thread list for a thread
// named name, truncated to the kernel's comm length limit, and returns
// the first matching thread id it encounters. found is false, with a
// nil error, when no thread anywhere carries that name — the caller
// skips the task with a warning rather than treating it as fatal.
func (r *Resolver) ResolveByName(name string) (tid int, found bool, err error) {
	want := truncateComm(name)

	procEntries, err := os.ReadDir(r.root)
	if err != nil {
		return 0, false, err
	}

	for _, procEntry := range procEntries {
		if _, ok := parsePID(procEntry.Name()); !ok {
			continue
		}

		taskDir := filepath.Join(r.root, procEntry.Name(), "task")
		taskEntries, err := os.ReadDir(taskDir)
		if err != nil {
			// Process exited between the top-level scan and this read;
			// not an error, just no longer a candidate.
			continue
		}

		for _, taskEntry := range taskEntries {
			tid, ok := parsePID(taskEntry.Name())
			if !ok {
				continue
			}

			comm, err := r.readComm(procEntry.Name(), taskEntry.Name())
			if err != nil {
				continue
			}
			if comm == want {
				return tid, true, nil
			}
		}
	}

	r.logger.Warn().Str("task_name", name).Msg("no thread matched task name")
	return 0, false, nil
}

func (r *Resolver) readComm(pid, tid string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, pid, "task", tid, "comm"))
	if err != nil {
		return "", err
	}
	return truncateComm(strings.TrimRight(string(data), "\n")), nil
}

func truncateComm(s string) string {
	if len(s) > commMaxLen {
		return s[:commMaxLen]
	}
	return s
}

func parsePID(name string) (int, bool) {
	n, err := strconv.Atoi(name)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
