package nodeagent

import (
	"context"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/metrics"
)

// hyperperiodLoop is the Hyperperiod Cycle Timer: an
// independent ticker, unrelated to any one task's timer, that fires
// once every hyperperiod.
func (a *Agent) hyperperiodLoop(ctx context.Context) {
	if a.hp.HyperperiodUS == 0 {
		return
	}
	interval := time.Duration(a.hp.HyperperiodUS) * time.Microsecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	every := a.cfg.StatsInterval
	if every == 0 {
		every = statsEveryCycles
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.shutdown:
			return
		case <-ticker.C:
			a.completeCycle(every)
		}
	}
}

func (a *Agent) completeCycle(statsEvery uint64) {
	a.mu.Lock()
	records := make([]*TimeTriggerRecord, 0, len(a.records))
	for _, rec := range a.records {
		records = append(records, rec)
	}
	a.hp.CompletedCycles++
	completed := a.hp.CompletedCycles
	a.mu.Unlock()

	var cycleMisses uint64
	for _, rec := range records {
		cycleMisses += uint64(rec.SwapCycleMisses())
	}

	a.mu.Lock()
	a.hp.CycleMisses = cycleMisses
	a.hp.TotalMisses += cycleMisses
	total := a.hp.TotalMisses
	a.mu.Unlock()

	metrics.HyperperiodCyclesCompletedTotal.WithLabelValues(a.cfg.NodeID).Inc()
	a.logger.Info().Uint64("cycle", completed).Uint64("cycle_misses", cycleMisses).Msg("hyperperiod boundary")

	if completed%statsEvery == 0 {
		a.logger.Info().
			Uint64("completed_cycles", completed).
			Uint64("total_misses", total).
			Int("task_count", a.hp.TaskCount).
			Msg("hyperperiod statistics summary")
	}
}
