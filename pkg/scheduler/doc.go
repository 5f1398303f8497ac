// Package scheduler implements the Global Scheduler: it
// places a declared task set onto the nodes of a Node Catalog using one
// of three algorithms (target-node-priority, best-fit-decreasing,
// least-loaded) and produces one immutable ScheduleTable per node.
//
// Scheduler.Schedule is the single entry point; SetTasks/Clear/SchedInfoMap
// manage the state it accumulates across calls. Callers must serialize
// their own access — Scheduler assumes a single-threaded caller, matching
// the orchestrator's single mutex around workload install/replace.
package scheduler
