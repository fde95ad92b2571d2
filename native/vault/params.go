package vault

import (
	"fmt"
	"math/big"
)

// Role identifiers consulted through the state's role registry.
const (
	// RoleAdmin gates treasury rotation, pause toggles, max-stake updates and
	// emergency withdrawals.
	RoleAdmin = "ROLE_VAULT_ADMIN"
	// RoleQuality gates the quality-control penalty hook.
	RoleQuality = "ROLE_QUALITY_CONTROL"
)

// BpsDenominator is the fixed-point base for multipliers and penalty rates:
// 10_000 basis points equal 1.0x.
const BpsDenominator = 10_000

const day = 24 * 60 * 60

// maxLockupSeconds bounds duration inputs so interpolation stays well inside
// uint64 range. A century is far beyond any configurable breakpoint.
const maxLockupSeconds = 100 * 365 * day

// DurationPoint maps a canonical lockup duration (seconds) to its base
// multiplier in basis points. Values between adjacent points interpolate
// linearly.
type DurationPoint struct {
	Duration uint64
	Bps      uint64
}

// AmountTier grants an additive multiplier bonus once the staked amount
// reaches the threshold.
type AmountTier struct {
	Threshold *big.Int
	BonusBps  uint64
}

// Params carries the vault's configurable economics. The multiplier table is
// deliberately data-driven: observed deployments differ on exact breakpoints,
// so the table ships as configuration rather than constants.
type Params struct {
	DurationPoints []DurationPoint
	AmountTiers    []AmountTier
	// MaxMultiplierBps caps the combined duration+amount multiplier.
	MaxMultiplierBps uint64
	MinStake         *big.Int
	MaxStake         *big.Int
	// PenaltyBps is the slice of an early withdrawal routed to the treasury.
	PenaltyBps uint64
	// CooldownPeriod gates normal exits, EarlyCooldownPeriod early exits.
	CooldownPeriod      uint64
	EarlyCooldownPeriod uint64
}

// DefaultParams returns the reference configuration: 30/90/180/365 day
// breakpoints, three amount tiers and a 2.5x combined ceiling.
func DefaultParams() Params {
	return Params{
		DurationPoints: []DurationPoint{
			{Duration: 30 * day, Bps: 10_000},
			{Duration: 90 * day, Bps: 12_000},
			{Duration: 180 * day, Bps: 15_000},
			{Duration: 365 * day, Bps: 20_000},
		},
		AmountTiers: []AmountTier{
			{Threshold: big.NewInt(10_000), BonusBps: 500},
			{Threshold: big.NewInt(100_000), BonusBps: 1_000},
			{Threshold: big.NewInt(1_000_000), BonusBps: 2_000},
		},
		MaxMultiplierBps:    25_000,
		MinStake:            big.NewInt(1),
		MaxStake:            big.NewInt(10_000_000),
		PenaltyBps:          5_000,
		CooldownPeriod:      7 * day,
		EarlyCooldownPeriod: 14 * day,
	}
}

// Clone returns a deep copy so callers can mutate tables without aliasing.
func (p Params) Clone() Params {
	out := p
	out.DurationPoints = append([]DurationPoint(nil), p.DurationPoints...)
	out.AmountTiers = make([]AmountTier, len(p.AmountTiers))
	for i, tier := range p.AmountTiers {
		out.AmountTiers[i] = AmountTier{BonusBps: tier.BonusBps}
		if tier.Threshold != nil {
			out.AmountTiers[i].Threshold = new(big.Int).Set(tier.Threshold)
		}
	}
	if p.MinStake != nil {
		out.MinStake = new(big.Int).Set(p.MinStake)
	}
	if p.MaxStake != nil {
		out.MaxStake = new(big.Int).Set(p.MaxStake)
	}
	return out
}

// Validate enforces the table shape the calculator depends on: strictly
// increasing durations, non-decreasing multipliers and tier bonuses, sane
// fixed-point ranges. Monotonicity of the calculator in both inputs follows
// from these checks.
func (p Params) Validate() error {
	if len(p.DurationPoints) == 0 {
		return fmt.Errorf("vault params: at least one duration breakpoint required")
	}
	for i, point := range p.DurationPoints {
		if point.Duration == 0 {
			return fmt.Errorf("vault params: breakpoint %d has zero duration", i)
		}
		if point.Duration > maxLockupSeconds {
			return fmt.Errorf("vault params: breakpoint %d exceeds maximum lockup", i)
		}
		if point.Bps == 0 || point.Bps > p.MaxMultiplierBps {
			return fmt.Errorf("vault params: breakpoint %d multiplier out of range", i)
		}
		if i > 0 {
			prev := p.DurationPoints[i-1]
			if point.Duration <= prev.Duration {
				return fmt.Errorf("vault params: breakpoint durations must strictly increase")
			}
			if point.Bps < prev.Bps {
				return fmt.Errorf("vault params: breakpoint multipliers must not decrease")
			}
		}
	}
	for i, tier := range p.AmountTiers {
		if tier.Threshold == nil || tier.Threshold.Sign() <= 0 {
			return fmt.Errorf("vault params: tier %d threshold must be positive", i)
		}
		if tier.BonusBps > p.MaxMultiplierBps {
			return fmt.Errorf("vault params: tier %d bonus out of range", i)
		}
		if i > 0 {
			prev := p.AmountTiers[i-1]
			if tier.Threshold.Cmp(prev.Threshold) <= 0 {
				return fmt.Errorf("vault params: tier thresholds must strictly increase")
			}
			if tier.BonusBps < prev.BonusBps {
				return fmt.Errorf("vault params: tier bonuses must not decrease")
			}
		}
	}
	if p.MaxMultiplierBps == 0 || p.MaxMultiplierBps > 10*BpsDenominator {
		return fmt.Errorf("vault params: multiplier ceiling out of range")
	}
	if p.MinStake == nil || p.MinStake.Sign() <= 0 {
		return fmt.Errorf("vault params: minimum stake must be positive")
	}
	if p.MaxStake == nil || p.MaxStake.Cmp(p.MinStake) < 0 {
		return fmt.Errorf("vault params: maximum stake below minimum")
	}
	if p.PenaltyBps > BpsDenominator {
		return fmt.Errorf("vault params: penalty rate above 100%%")
	}
	if p.CooldownPeriod == 0 || p.EarlyCooldownPeriod == 0 {
		return fmt.Errorf("vault params: cooldown periods must be positive")
	}
	return nil
}

// SupportedDuration reports whether d matches one of the canonical
// breakpoints. Stake accepts only these values; intermediate durations arise
// solely from weighted-average combination.
func (p Params) SupportedDuration(d uint64) bool {
	for _, point := range p.DurationPoints {
		if point.Duration == d {
			return true
		}
	}
	return false
}
