// Package transport implements the orchestrator↔node operations:
// FetchSchedule, Sync, ReportMiss. Orchestrator holds the server-side
// logic (sync barrier, schedule cache, miss resolution); Server
// exposes it over HTTP/JSON; Client is the node agent's counterpart
// for calling it. pkg/wire supplies the binary layout of the
// serialized schedule table fetch_schedule returns.
package transport
