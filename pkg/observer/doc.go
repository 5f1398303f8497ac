/*
Package observer implements the Deadline Observer: a per-pid record
of the most recent sigwait entry/exit event, kept as a pair of atomically updated fields (a wall-clock timestamp and a one-bit
phase) so that RecordFor never contends with the writer.

Events arrive as Samples carrying a kernel-monotonic timestamp and are
queued on a bounded ring channel; a single background goroutine started
by Start drains the ring and applies each sample to its pid's record.
The real producer is a BPF probe attached to the sigwait syscall; Feed
stands in for it, and a real backend would call the same method from
its own poller.

Calibrate converts monotonic nanoseconds to wall-clock nanoseconds by
sampling both clocks several times and keeping the minimum-round-trip
triple as the calibration bracket.

When Stop has been called, or Start never was, Available reports false
and RequireAvailable returns an error; callers are expected to degrade
to miss-detection-disabled rather than treat that as fatal.
*/
package observer
