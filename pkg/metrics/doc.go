// Package metrics registers the orchestrator/node-agent Prometheus metrics
// (node/CPU utilization, scheduling latency, hyperperiod length, deadline
// misses by classification) at init and exposes them via Handler for an
// HTTP /metrics endpoint. The Timer helper mirrors prometheus's own
// histogram-observe idiom used across this module.
package metrics
