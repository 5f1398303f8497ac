/*
Package nodeagent implements the Node Agent Runtime: the per-node
state machine that fetches its schedule table from the
orchestrator, resolves each task's worker thread, applies scheduling
attributes, arms a timer per task, optionally crosses the cross-node
sync barrier, and then runs the signal fast path every period.

Agent.Run drives the full Init→Connected→Scheduled→Synced→Running→
Stopping→Done sequence. The raw Linux syscalls the arming sequence
needs (sched_setaffinity, sched_setattr, pidfd_open, timerfd_create,
epoll) sit behind the Platform and Epoller interfaces so the state
machine itself can be exercised without root privileges or a Linux
kernel; platform_linux.go supplies the real implementation and
platform_other.go a stub for every other OS.
*/
package nodeagent
