// Package hyperperiod computes the hyperperiod of a task set: the least
// common multiple of all declared periods, the length of one full
// repeating schedule.
package hyperperiod

import "github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"

// SafetyCapUS is the default hyperperiod safety cap: a result above
// this length is still accepted, but logged as a diagnostic rather
// than rejected.
const SafetyCapUS = 10_000_000 // 10s

// Calculate returns the LCM of periods via iterated Euclidean GCD. An
// empty input returns 0. Zero-valued periods are skipped: a degenerate
// period contributes nothing to the hyperperiod.
func Calculate(periodsUS []uint64) uint64 {
	if len(periodsUS) == 0 {
		return 0
	}

	var result uint64
	for _, p := range periodsUS {
		if p == 0 {
			continue
		}
		if result == 0 {
			result = p
			continue
		}
		result = lcm(result, p)
	}

	if result > SafetyCapUS {
		log.Logger.Warn().
			Uint64("hyperperiod_us", result).
			Uint64("safety_cap_us", SafetyCapUS).
			Msg("hyperperiod exceeds safety cap, proceeding anyway")
	}

	return result
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uint64) uint64 {
	g := gcd(a, b)
	if g == 0 {
		return 0
	}
	return a / g * b
}
