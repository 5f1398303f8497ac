package nodeagent

import (
	"fmt"
	"time"
)

// traceFire appends one gnuplot-consumable line per timer fire:
// task name, fire time in unix microseconds, and the jitter between the
// expected release instant and the actual wakeup, in microseconds.
// Multiple task loops share the writer, so appends are serialized.
func (a *Agent) traceFire(rec *TimeTriggerRecord, fired time.Time) {
	w := a.cfg.TraceWriter
	if w == nil {
		return
	}

	expected := rec.LastTimerTS.Add(time.Duration(rec.Task.PeriodUS) * time.Microsecond)
	jitter := fired.Sub(expected)

	a.traceMu.Lock()
	defer a.traceMu.Unlock()
	if !a.traceHeader {
		fmt.Fprintln(w, "# task fire_us jitter_us")
		a.traceHeader = true
	}
	fmt.Fprintf(w, "%s %d %d\n", rec.Task.Name, fired.UnixMicro(), jitter.Microseconds())
}
