package vault

import "math/big"

// CalculateMultiplier maps (amount, effective lockup duration) to a reward
// multiplier in basis points. Pure and deterministic: the duration axis
// interpolates linearly between the configured breakpoints (flooring below the
// first and capping at the last), the amount axis adds the bonus of the
// highest tier reached, and the combined value is clamped to the ceiling.
//
// Division truncates at every step; callers relying on exact outputs must not
// reorder the arithmetic.
func (p Params) CalculateMultiplier(amount *big.Int, duration uint64) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, nil
	}
	if duration > maxLockupSeconds {
		return 0, ErrArithmetic
	}
	base, err := p.durationMultiplier(duration)
	if err != nil {
		return 0, err
	}
	total := base + p.amountBonus(amount)
	if total > p.MaxMultiplierBps {
		total = p.MaxMultiplierBps
	}
	return total, nil
}

func (p Params) durationMultiplier(duration uint64) (uint64, error) {
	points := p.DurationPoints
	if len(points) == 0 {
		return 0, errNilParams
	}
	first := points[0]
	if duration <= first.Duration {
		return first.Bps, nil
	}
	last := points[len(points)-1]
	if duration >= last.Duration {
		return last.Bps, nil
	}
	for i := 1; i < len(points); i++ {
		lo, hi := points[i-1], points[i]
		if duration > hi.Duration {
			continue
		}
		// Linear interpolation with truncating division. Table validation
		// bounds both factors, so the product stays far inside uint64 range.
		span := hi.Duration - lo.Duration
		rise := hi.Bps - lo.Bps
		offset := duration - lo.Duration
		return lo.Bps + offset*rise/span, nil
	}
	return last.Bps, nil
}

func (p Params) amountBonus(amount *big.Int) uint64 {
	bonus := uint64(0)
	for _, tier := range p.AmountTiers {
		if tier.Threshold == nil || amount.Cmp(tier.Threshold) < 0 {
			break
		}
		bonus = tier.BonusBps
	}
	return bonus
}
