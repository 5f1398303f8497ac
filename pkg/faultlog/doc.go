// Package faultlog persists the fault events relayed through
// pkg/controlplane.FaultEgress into an embedded BoltDB database, one
// bucket ("fault_events") keyed by FaultEvent.ID, JSON-marshaled
// values. It exists to let an operator inspect miss history after the
// fact; FaultEgress itself only relays events live and keeps none.
package faultlog
