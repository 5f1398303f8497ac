/*
Package events provides an in-memory event broker for the orchestrator's
pub/sub notifications.

The broker broadcasts workload, catalog and fault lifecycle events to any
number of subscribers over buffered channels. Publish never blocks on a
slow subscriber: a subscriber whose buffer is full simply misses that
event rather than stalling the broadcast loop.

# Event Types

	workload.installed  — ScheduleIngest accepted a workload
	workload.rejected   — ScheduleIngest rejected a workload
	catalog.loaded      — the Node Catalog replaced its node set
	node.synced         — a node registered at the sync barrier
	task.miss           — a node reported a deadline miss

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:     events.EventWorkloadInstalled,
		Metadata: map[string]string{"workload_id": "wl-1"},
	})

	evt := <-sub

Subscribers are code embedding the orchestrator in-process, such as
tests asserting that a given operation produced the event it should
have. No HTTP endpoint streams events.
*/
package events
