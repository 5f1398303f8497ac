// Package orchestrator is the composition root of the orchestrator
// process. It constructs and owns the Node Catalog, the event broker,
// the fault ledger, the schedule-ingest and fault-egress services, and
// the node-facing transport, wiring them together by value at startup
// and running their listeners until shutdown.
package orchestrator
