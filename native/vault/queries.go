package vault

import (
	"fmt"
	"math/big"
)

// PositionInfo is the read-only composition of a position exposed to clients
// and the downstream reward distributor.
type PositionInfo struct {
	Active                bool     `json:"active"`
	Amount                *big.Int `json:"amount"`
	Unlocked              *big.Int `json:"unlocked"`
	Locked                *big.Int `json:"locked"`
	CooldownAmount        *big.Int `json:"cooldownAmount"`
	EarlyCooldownAmount   *big.Int `json:"earlyCooldownAmount"`
	Withdrawable          *big.Int `json:"withdrawable"`
	EffectiveMultiplier   uint64   `json:"effectiveMultiplier"`
	EffectiveLockupPeriod uint64   `json:"effectiveLockupPeriod"`
	WeightedStartTime     uint64   `json:"weightedStartTime"`
	// Remaining waits in seconds; zero once the corresponding gate is open.
	UnlockIn        uint64 `json:"unlockIn"`
	CooldownIn      uint64 `json:"cooldownIn"`
	EarlyCooldownIn uint64 `json:"earlyCooldownIn"`
	LastUpdateTime  uint64 `json:"lastUpdateTime"`
	ComputedAt      uint64 `json:"computedAt"`
}

func remainingUntil(now, threshold uint64) uint64 {
	if now >= threshold {
		return 0
	}
	return threshold - now
}

// PositionInfo assembles the full per-user view at the engine's current time.
func (e *Engine) PositionInfo(owner [20]byte) (*PositionInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(owner) {
		return nil, ErrZeroAddress
	}
	position, err := e.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	now := e.now()
	info := &PositionInfo{
		Active:                position.Active(),
		Amount:                cloneBigInt(position.Amount),
		Unlocked:              position.Unlocked(now),
		Locked:                position.Locked(now),
		CooldownAmount:        cloneBigInt(position.CooldownAmount),
		EarlyCooldownAmount:   cloneBigInt(position.EarlyUnstakeCooldownAmount),
		Withdrawable:          big.NewInt(0),
		EffectiveMultiplier:   position.EffectiveMultiplier,
		EffectiveLockupPeriod: position.EffectiveLockupPeriod,
		WeightedStartTime:     position.WeightedStartTime,
		LastUpdateTime:        position.LastUpdateTime,
		ComputedAt:            now,
	}
	if position.Active() {
		info.UnlockIn = remainingUntil(now, position.MaturesAt())
	}
	if position.CooldownAmount.Sign() > 0 {
		release := position.CooldownStart + e.params.CooldownPeriod
		info.CooldownIn = remainingUntil(now, release)
		if info.CooldownIn == 0 {
			info.Withdrawable.Add(info.Withdrawable, position.CooldownAmount)
		}
	}
	if position.EarlyUnstakeCooldownAmount.Sign() > 0 {
		release := position.EarlyUnstakeCooldownStart + e.params.EarlyCooldownPeriod
		info.EarlyCooldownIn = remainingUntil(now, release)
		if info.EarlyCooldownIn == 0 {
			info.Withdrawable.Add(info.Withdrawable, position.EarlyUnstakeCooldownAmount)
		}
	}
	return info, nil
}

// TotalStaked returns the global principal aggregate.
func (e *Engine) TotalStaked() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	total, err := e.state.VaultTotalStaked()
	if err != nil {
		return nil, fmt.Errorf("vault: load total staked: %w", err)
	}
	return cloneBigInt(total), nil
}

// MaxStake returns the effective per-user ceiling (stored override or
// configured default).
func (e *Engine) MaxStake() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.maxStake()
}

// Paused reports the mutation pause toggle.
func (e *Engine) Paused() (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.VaultPaused()
}

// Treasury returns the configured penalty recipient.
func (e *Engine) Treasury() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	return e.state.VaultTreasury()
}
