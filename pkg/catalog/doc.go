// Package catalog implements the Node Catalog: the orchestrator's read-
// mostly registry of compute nodes, loaded once from a YAML document and
// consulted by the Global Scheduler and control-plane interfaces.
//
// Load replaces the catalog's node set only on success; a malformed
// document leaves the catalog unchanged. A document whose "nodes" key is
// empty or missing leaves the catalog holding a single synthetic
// default_node (4 CPUs, 4096 MiB), which is also what a new catalog
// starts with, per the compatibility fallback this package exists to
// preserve.
package catalog
