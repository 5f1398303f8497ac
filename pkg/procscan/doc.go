// Package procscan resolves a task name to an OS thread identifier by
// walking /proc/<pid>/task/<tid>/comm, the same way tools like ps and
// top read thread names. It implements step 1 of the node agent's
// per-task arming sequence: locate the worker thread a schedule table
// entry refers to by name before a scheduling policy or CPU affinity
// can be applied to it.
package procscan
