package vault

import (
	"fmt"
	"math/big"

	"stakevault/core/events"
)

// The lifecycle is a three-state machine per user: Active (no request open),
// Cooldown-Pending (normal exit) and Early-Cooldown-Pending (penalised exit).
// The two pending states are mutually exclusive, and funds committed to a
// request stay counted in the position's Amount until release.

// InitiateUnstake opens a normal-exit cooldown for part or all of the matured
// principal.
func (e *Engine) InitiateUnstake(owner [20]byte, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if isZeroAddress(owner) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	position, err := e.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	if !position.Active() {
		return nil, ErrNoPosition
	}
	if position.CooldownOpen() {
		return nil, ErrCooldownActive
	}
	now := e.now()
	if amount.Cmp(position.Unlocked(now)) > 0 {
		return nil, ErrExceedsUnlocked
	}

	position.CooldownStart = now
	position.CooldownAmount = cloneBigInt(amount)
	position.LastUpdateTime = now
	if err := e.addTotalCooldown(amount); err != nil {
		return nil, err
	}
	if err := e.storePosition(owner, position); err != nil {
		return nil, err
	}
	e.emit(events.VaultUnstakeInitiated{
		Owner:         owner,
		Amount:        cloneBigInt(amount),
		CooldownStart: now,
		ReleaseAt:     now + e.params.CooldownPeriod,
	})
	return position.Clone(), nil
}

// Unstake releases cooled-down funds at full value once the cooldown period
// has elapsed. Partial completion leaves the remainder pending under the
// original cooldown clock.
func (e *Engine) Unstake(owner [20]byte, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if isZeroAddress(owner) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	position, err := e.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	if position.CooldownAmount.Sign() == 0 {
		return nil, ErrNoCooldown
	}
	if amount.Cmp(position.CooldownAmount) > 0 {
		return nil, ErrExceedsCooldown
	}
	now := e.now()
	if now < position.CooldownStart+e.params.CooldownPeriod {
		return nil, ErrCooldownNotElapsed
	}

	position.Amount = new(big.Int).Sub(position.Amount, amount)
	position.CooldownAmount = new(big.Int).Sub(position.CooldownAmount, amount)
	if position.CooldownAmount.Sign() == 0 {
		position.CooldownStart = 0
	}
	position.LastUpdateTime = now
	if position.Active() {
		if err := e.refreshMultiplier(position); err != nil {
			return nil, err
		}
	} else if !position.CooldownOpen() {
		position.reset()
	}
	if err := e.token.Transfer(e.vaultAddr, owner, amount); err != nil {
		return nil, fmt.Errorf("vault: release stake: %w", err)
	}
	if err := e.addTotalStaked(new(big.Int).Neg(amount)); err != nil {
		return nil, err
	}
	if err := e.addTotalCooldown(new(big.Int).Neg(amount)); err != nil {
		return nil, err
	}
	if err := e.storePosition(owner, position); err != nil {
		return nil, err
	}
	total, err := e.state.VaultTotalStaked()
	if err != nil {
		return nil, err
	}
	e.emit(events.VaultUnstaked{
		Owner:       owner,
		Amount:      cloneBigInt(amount),
		Remaining:   cloneBigInt(position.Amount),
		TotalStaked: total,
	})
	return position.Clone(), nil
}

// InitiateEarlyUnstake opens an early-exit cooldown against the still-locked
// principal.
func (e *Engine) InitiateEarlyUnstake(owner [20]byte, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if isZeroAddress(owner) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	position, err := e.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	if !position.Active() {
		return nil, ErrNoPosition
	}
	if position.CooldownOpen() {
		return nil, ErrCooldownActive
	}
	now := e.now()
	if amount.Cmp(position.Locked(now)) > 0 {
		return nil, ErrExceedsLocked
	}

	position.EarlyUnstakeCooldownStart = now
	position.EarlyUnstakeCooldownAmount = cloneBigInt(amount)
	position.LastUpdateTime = now
	if err := e.addTotalEarlyCooldown(amount); err != nil {
		return nil, err
	}
	if err := e.storePosition(owner, position); err != nil {
		return nil, err
	}
	e.emit(events.VaultEarlyUnstakeInitiated{
		Owner:         owner,
		Amount:        cloneBigInt(amount),
		CooldownStart: now,
		ReleaseAt:     now + e.params.EarlyCooldownPeriod,
	})
	return position.Clone(), nil
}

// EarlyUnstake releases early-exit funds once their cooldown has elapsed,
// splitting the amount between the configured penalty (to the treasury) and
// the remainder (to the caller). Truncating division determines the penalty
// slice, so the caller receives any rounding dust.
func (e *Engine) EarlyUnstake(owner [20]byte, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if isZeroAddress(owner) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	position, err := e.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	if position.EarlyUnstakeCooldownAmount.Sign() == 0 {
		return nil, ErrNoCooldown
	}
	if amount.Cmp(position.EarlyUnstakeCooldownAmount) > 0 {
		return nil, ErrExceedsCooldown
	}
	now := e.now()
	if now < position.EarlyUnstakeCooldownStart+e.params.EarlyCooldownPeriod {
		return nil, ErrCooldownNotElapsed
	}
	treasury, err := e.state.VaultTreasury()
	if err != nil {
		return nil, fmt.Errorf("vault: load treasury: %w", err)
	}
	if isZeroAddress(treasury) {
		return nil, fmt.Errorf("vault: treasury not configured")
	}

	penalty := new(big.Int).Mul(amount, new(big.Int).SetUint64(e.params.PenaltyBps))
	penalty.Quo(penalty, big.NewInt(BpsDenominator))
	released := new(big.Int).Sub(amount, penalty)

	position.Amount = new(big.Int).Sub(position.Amount, amount)
	position.EarlyUnstakeCooldownAmount = new(big.Int).Sub(position.EarlyUnstakeCooldownAmount, amount)
	if position.EarlyUnstakeCooldownAmount.Sign() == 0 {
		position.EarlyUnstakeCooldownStart = 0
	}
	position.LastUpdateTime = now
	if position.Active() {
		if err := e.refreshMultiplier(position); err != nil {
			return nil, err
		}
	} else if !position.CooldownOpen() {
		position.reset()
	}
	if penalty.Sign() > 0 {
		if err := e.token.Transfer(e.vaultAddr, treasury, penalty); err != nil {
			return nil, fmt.Errorf("vault: route penalty: %w", err)
		}
	}
	if released.Sign() > 0 {
		if err := e.token.Transfer(e.vaultAddr, owner, released); err != nil {
			return nil, fmt.Errorf("vault: release stake: %w", err)
		}
	}
	if err := e.addTotalStaked(new(big.Int).Neg(amount)); err != nil {
		return nil, err
	}
	if err := e.addTotalEarlyCooldown(new(big.Int).Neg(amount)); err != nil {
		return nil, err
	}
	if err := e.storePosition(owner, position); err != nil {
		return nil, err
	}
	total, err := e.state.VaultTotalStaked()
	if err != nil {
		return nil, err
	}
	e.emit(events.VaultEarlyUnstaked{
		Owner:       owner,
		Amount:      cloneBigInt(amount),
		Penalty:     penalty,
		Released:    released,
		Treasury:    treasury,
		TotalStaked: total,
	})
	return position.Clone(), nil
}
