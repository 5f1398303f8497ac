package nodeagent

import (
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

// ApplySelfAttributes pins the calling process to cpu and raises it to
// a real-time FIFO priority, for deployments that want the agent itself
// isolated from the workloads it signals. Pass a negative cpu or a
// non-positive priority to skip that half. Failures are returned, not
// fatal; the caller decides whether running unpinned is acceptable.
func ApplySelfAttributes(cpu, priority int) error {
	p := newPlatform()
	if cpu >= 0 {
		if err := p.SetAffinity(0, cpu); err != nil {
			return err
		}
	}
	if priority > 0 {
		if err := p.SetSchedAttr(0, types.SchedFIFO, priority); err != nil {
			return err
		}
	}
	return nil
}
