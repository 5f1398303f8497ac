package scheduler

import "fmt"

// Algorithm selects one of the three placement strategies.
// It is a closed enum parsed once from the orchestrator's configuration
// (ParseAlgorithm), not passed around as a bare string.
type Algorithm int

const (
	// TargetNodePriority forces each task onto its declared target node
	// and smart-packs CPUs under a 0.90 per-CPU utilization cap. It is
	// the primary algorithm.
	TargetNodePriority Algorithm = iota
	// BestFitDecreasing sorts tasks by runtime descending and places
	// each on the node whose post-assignment utilization is highest
	// while staying at or below 1.0. Secondary algorithm.
	BestFitDecreasing
	// LeastLoaded walks tasks in declaration order and places each on
	// the lowest-utilization feasible node. Fallback algorithm.
	LeastLoaded
)

func (a Algorithm) String() string {
	switch a {
	case TargetNodePriority:
		return "target-node-priority"
	case BestFitDecreasing:
		return "best-fit-decreasing"
	case LeastLoaded:
		return "least-loaded"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses the stringly-typed algorithm name from the
// orchestrator's configuration into the closed Algorithm enum, once.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "target-node-priority", "":
		return TargetNodePriority, nil
	case "best-fit-decreasing":
		return BestFitDecreasing, nil
	case "least-loaded":
		return LeastLoaded, nil
	default:
		return 0, fmt.Errorf("unknown scheduling algorithm %q", s)
	}
}
