// Package controlplane implements the upstream-facing ScheduleIngest
// and FaultEgress services: accepting a declared workload for
// placement and relaying node-reported faults upstream. The HTTP/JSON
// server in http.go is one concrete transport over the plain Go types
// in service.go; pkg/orchestrator wires a Server into its own listener.
package controlplane
