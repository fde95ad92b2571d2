package vault

import "math/big"

// The combiner merges new value into an existing position's synthetic
// (start, duration) pair. Two deliberate properties shape the math:
//
//   - A top-up never changes the effective lockup period; the weighted start
//     moves instead, so the merged remaining lock is the amount-weighted
//     average of the old remainder and a fresh full period.
//   - An extension either dominates the current remainder (re-anchoring the
//     position at now) or leaves the schedule untouched. Extending before
//     topping up therefore lands on the requested period exactly, while the
//     reverse order can only end at that period or longer.

// remainingLock returns the seconds of lock left on a schedule, zero once
// matured.
func remainingLock(now, start, duration uint64) (uint64, error) {
	end, err := addUint64(start, duration)
	if err != nil {
		return 0, err
	}
	if now >= end {
		return 0, nil
	}
	return end - now, nil
}

// CombineAmount merges an amount top-up into an existing schedule. The
// existing principal contributes its remaining lock, the added principal a
// fresh full period; the merged remainder is their amount-weighted average,
// truncated. The duration is preserved and the start back-derived so that
// start + duration == now + merged remainder.
func CombineAmount(now, start, duration uint64, existing, added *big.Int) (uint64, uint64, error) {
	if duration == 0 {
		return 0, 0, ErrZeroDuration
	}
	if duration > maxLockupSeconds {
		return 0, 0, ErrArithmetic
	}
	if existing == nil || existing.Sign() <= 0 || added == nil || added.Sign() <= 0 {
		return 0, 0, ErrZeroAmount
	}
	remaining, err := remainingLock(now, start, duration)
	if err != nil {
		return 0, 0, err
	}

	// merged = (existing*remaining + added*duration) / (existing + added)
	weighted := new(big.Int).Mul(existing, new(big.Int).SetUint64(remaining))
	weighted.Add(weighted, new(big.Int).Mul(added, new(big.Int).SetUint64(duration)))
	total := new(big.Int).Add(existing, added)
	weighted.Quo(weighted, total)
	if !weighted.IsUint64() {
		return 0, 0, ErrArithmetic
	}
	merged := weighted.Uint64()

	// merged is a weighted average of values <= duration, so the subtraction
	// below cannot push the schedule past now; it can only underflow when the
	// clock itself predates the duration, which is rejected as malformed.
	if now+merged < duration {
		return 0, 0, ErrArithmetic
	}
	newStart := now + merged - duration
	return newStart, duration, nil
}

// CombineLockup applies an extension request expressed as a full lockup
// period measured from now. The merged remainder is the maximum of the
// current remainder and the request: a dominating request re-anchors the
// position at now for exactly the requested period, while a request at or
// below the current remainder leaves the schedule unchanged.
func CombineLockup(now, start, duration, requested uint64) (uint64, uint64, error) {
	if duration == 0 || requested == 0 {
		return 0, 0, ErrZeroDuration
	}
	if duration > maxLockupSeconds || requested > maxLockupSeconds {
		return 0, 0, ErrArithmetic
	}
	remaining, err := remainingLock(now, start, duration)
	if err != nil {
		return 0, 0, err
	}
	if requested <= remaining {
		return start, duration, nil
	}
	// The request dominates. The re-anchored period becomes the effective
	// lockup, so it must not undercut the current one.
	if requested < duration {
		return 0, 0, ErrLockupShortened
	}
	return now, requested, nil
}

func addUint64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmetic
	}
	return sum, nil
}
