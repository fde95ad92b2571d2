package vault

import "math/big"

// Position is the single mutable record held per user. Whether a user "has a
// position" is derived from Amount alone; there is no separate flag, and a
// record whose amount and both cooldown amounts are zero is indistinguishable
// from one that never existed.
type Position struct {
	// Amount is the current principal, inclusive of any portion already
	// requested for withdrawal. Never negative.
	Amount *big.Int `json:"amount"`
	// WeightedStartTime and EffectiveLockupPeriod define the synthetic
	// schedule: the whole Amount matures at WeightedStartTime +
	// EffectiveLockupPeriod.
	WeightedStartTime     uint64 `json:"weightedStartTime"`
	EffectiveLockupPeriod uint64 `json:"effectiveLockupPeriod"`
	// EffectiveMultiplier caches the calculator output for the current
	// (Amount, EffectiveLockupPeriod) pair. It is recomputed on every
	// mutation touching either input and never set independently.
	EffectiveMultiplier uint64 `json:"effectiveMultiplier"`
	// Normal-exit request state, drawn from the matured portion.
	CooldownStart  uint64   `json:"cooldownStart"`
	CooldownAmount *big.Int `json:"cooldownAmount"`
	// Early-exit request state, drawn from the still-locked portion.
	EarlyUnstakeCooldownStart  uint64   `json:"earlyUnstakeCooldownStart"`
	EarlyUnstakeCooldownAmount *big.Int `json:"earlyUnstakeCooldownAmount"`
	LastUpdateTime             uint64   `json:"lastUpdateTime"`
}

// EnsurePosition normalises nil records and nil big.Int fields into an empty,
// usable position.
func EnsurePosition(p *Position) *Position {
	if p == nil {
		p = &Position{}
	}
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	if p.CooldownAmount == nil {
		p.CooldownAmount = big.NewInt(0)
	}
	if p.EarlyUnstakeCooldownAmount == nil {
		p.EarlyUnstakeCooldownAmount = big.NewInt(0)
	}
	return p
}

// Clone returns a deep copy safe for mutation.
func (p *Position) Clone() *Position {
	if p == nil {
		return EnsurePosition(nil)
	}
	clone := *p
	clone.Amount = cloneBigInt(p.Amount)
	clone.CooldownAmount = cloneBigInt(p.CooldownAmount)
	clone.EarlyUnstakeCooldownAmount = cloneBigInt(p.EarlyUnstakeCooldownAmount)
	return &clone
}

// Active reports whether the user currently holds a position.
func (p *Position) Active() bool {
	return p != nil && p.Amount != nil && p.Amount.Sign() > 0
}

// MaturesAt returns the unix second at which the principal unlocks.
func (p *Position) MaturesAt() uint64 {
	if p == nil {
		return 0
	}
	return p.WeightedStartTime + p.EffectiveLockupPeriod
}

// Matured reports whether the lockup has elapsed at the supplied time.
func (p *Position) Matured(now uint64) bool {
	return p.Active() && now >= p.MaturesAt()
}

// Unlocked returns the matured portion at the supplied time. Maturity is
// all-or-nothing: the single synthetic schedule covers the whole principal.
func (p *Position) Unlocked(now uint64) *big.Int {
	if p.Matured(now) {
		return cloneBigInt(p.Amount)
	}
	return big.NewInt(0)
}

// Locked returns the still-locked portion at the supplied time.
func (p *Position) Locked(now uint64) *big.Int {
	if !p.Active() || p.Matured(now) {
		return big.NewInt(0)
	}
	return cloneBigInt(p.Amount)
}

// CooldownOpen reports whether a withdrawal request of either kind is
// outstanding. At most one of the two amounts is ever non-zero.
func (p *Position) CooldownOpen() bool {
	if p == nil {
		return false
	}
	return (p.CooldownAmount != nil && p.CooldownAmount.Sign() > 0) ||
		(p.EarlyUnstakeCooldownAmount != nil && p.EarlyUnstakeCooldownAmount.Sign() > 0)
}

// FreePortion returns the principal not committed to either cooldown. The
// penalty hook consumes this slice first.
func (p *Position) FreePortion() *big.Int {
	if !p.Active() {
		return big.NewInt(0)
	}
	free := cloneBigInt(p.Amount)
	if p.CooldownAmount != nil {
		free.Sub(free, p.CooldownAmount)
	}
	if p.EarlyUnstakeCooldownAmount != nil {
		free.Sub(free, p.EarlyUnstakeCooldownAmount)
	}
	if free.Sign() < 0 {
		return big.NewInt(0)
	}
	return free
}

// reset returns the record to the empty state so the user can stake afresh.
func (p *Position) reset() {
	p.Amount = big.NewInt(0)
	p.WeightedStartTime = 0
	p.EffectiveLockupPeriod = 0
	p.EffectiveMultiplier = 0
	p.CooldownStart = 0
	p.CooldownAmount = big.NewInt(0)
	p.EarlyUnstakeCooldownStart = 0
	p.EarlyUnstakeCooldownAmount = big.NewInt(0)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
