// Package types defines the core data model shared by the orchestrator and
// the node agent: declared and scheduled Tasks, the Node Catalog's Node
// record, a Workload and its per-node ScheduleTable, and the FaultEvent and
// HyperperiodState runtime records.
package types
