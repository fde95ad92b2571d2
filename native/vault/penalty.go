package vault

import (
	"fmt"
	"math/big"

	"stakevault/core/events"
)

// ProcessQAPenalty claws back up to requested from the user's position as
// restitution, returning the amount actually applied. Only the configured
// quality-control caller may invoke it.
//
// Unlike every other entry point it degrades gracefully on insufficiency: a
// request above the position's total applies whatever is available and
// reports the smaller figure instead of failing. The free (non-cooldown)
// portion is consumed first, then whichever cooldown slice is open. Deducted
// funds route to the treasury, mirroring the early-unstake penalty path.
func (e *Engine) ProcessQAPenalty(caller, user [20]byte, requested *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if !e.state.HasRole(RoleQuality, caller[:]) {
		return nil, ErrUnauthorized
	}
	if isZeroAddress(user) {
		return nil, ErrZeroAddress
	}
	if requested == nil || requested.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	treasury, err := e.state.VaultTreasury()
	if err != nil {
		return nil, fmt.Errorf("vault: load treasury: %w", err)
	}
	if isZeroAddress(treasury) {
		return nil, fmt.Errorf("vault: treasury not configured")
	}
	position, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	if !position.Active() {
		return big.NewInt(0), nil
	}

	applied := cloneBigInt(requested)
	if applied.Cmp(position.Amount) > 0 {
		applied.Set(position.Amount)
	}

	// Consume the free portion first so open withdrawal requests survive
	// whenever possible, then bite into the pending cooldown slice.
	remainder := cloneBigInt(applied)
	free := position.FreePortion()
	if free.Cmp(remainder) > 0 {
		free = remainder
	}
	remainder = new(big.Int).Sub(remainder, free)
	if remainder.Sign() > 0 {
		if position.CooldownAmount.Sign() > 0 {
			taken := cloneBigInt(remainder)
			if taken.Cmp(position.CooldownAmount) > 0 {
				taken.Set(position.CooldownAmount)
			}
			position.CooldownAmount = new(big.Int).Sub(position.CooldownAmount, taken)
			if position.CooldownAmount.Sign() == 0 {
				position.CooldownStart = 0
			}
			if err := e.addTotalCooldown(new(big.Int).Neg(taken)); err != nil {
				return nil, err
			}
			remainder.Sub(remainder, taken)
		}
		if remainder.Sign() > 0 && position.EarlyUnstakeCooldownAmount.Sign() > 0 {
			taken := cloneBigInt(remainder)
			if taken.Cmp(position.EarlyUnstakeCooldownAmount) > 0 {
				taken.Set(position.EarlyUnstakeCooldownAmount)
			}
			position.EarlyUnstakeCooldownAmount = new(big.Int).Sub(position.EarlyUnstakeCooldownAmount, taken)
			if position.EarlyUnstakeCooldownAmount.Sign() == 0 {
				position.EarlyUnstakeCooldownStart = 0
			}
			if err := e.addTotalEarlyCooldown(new(big.Int).Neg(taken)); err != nil {
				return nil, err
			}
			remainder.Sub(remainder, taken)
		}
	}
	if remainder.Sign() != 0 {
		return nil, ErrArithmetic
	}

	now := e.now()
	position.Amount = new(big.Int).Sub(position.Amount, applied)
	position.LastUpdateTime = now
	if position.Active() {
		if err := e.refreshMultiplier(position); err != nil {
			return nil, err
		}
	} else {
		// A fully clawed-back position clears its cooldown fields too so the
		// user can restake cleanly.
		position.reset()
	}
	if err := e.token.Transfer(e.vaultAddr, treasury, applied); err != nil {
		return nil, fmt.Errorf("vault: route penalty: %w", err)
	}
	if err := e.addTotalStaked(new(big.Int).Neg(applied)); err != nil {
		return nil, err
	}
	if err := e.storePosition(user, position); err != nil {
		return nil, err
	}
	e.emit(events.VaultPenaltyApplied{
		Owner:     user,
		Requested: cloneBigInt(requested),
		Applied:   cloneBigInt(applied),
		Remaining: cloneBigInt(position.Amount),
		Treasury:  treasury,
	})
	return applied, nil
}
