package vault

import (
	"fmt"
	"math/big"

	"stakevault/core/events"
)

// Administrative entry points. All of them are gated on RoleAdmin; unlike the
// user-facing operations they remain available while the vault is paused,
// otherwise a pause could never be lifted.

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

// SetTreasury rotates the penalty recipient.
func (e *Engine) SetTreasury(caller, treasury [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if isZeroAddress(treasury) {
		return ErrZeroAddress
	}
	previous, err := e.state.VaultTreasury()
	if err != nil {
		return fmt.Errorf("vault: load treasury: %w", err)
	}
	if err := e.state.VaultSetTreasury(treasury); err != nil {
		return fmt.Errorf("vault: store treasury: %w", err)
	}
	e.emit(events.VaultTreasuryUpdated{Previous: previous, Current: treasury})
	return nil
}

// SetQualityCaller replaces the identity allowed to invoke the penalty hook.
func (e *Engine) SetQualityCaller(caller, quality [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if isZeroAddress(quality) {
		return ErrZeroAddress
	}
	if err := e.state.ReplaceRole(RoleQuality, quality[:]); err != nil {
		return fmt.Errorf("vault: assign quality role: %w", err)
	}
	return nil
}

// SetMaxStake updates the per-user stake ceiling. Existing positions above a
// lowered ceiling keep their principal; the bound applies to new stakes and
// top-ups only.
func (e *Engine) SetMaxStake(caller [20]byte, maximum *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if maximum == nil || maximum.Cmp(e.params.MinStake) < 0 {
		return ErrAmountOutOfRange
	}
	if err := e.state.VaultSetMaxStake(maximum); err != nil {
		return fmt.Errorf("vault: store max stake: %w", err)
	}
	return nil
}

// Pause blocks every user-facing mutation while leaving reads available.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.state.VaultSetPaused(true); err != nil {
		return fmt.Errorf("vault: store pause toggle: %w", err)
	}
	e.emit(events.VaultPauseChanged{Paused: true})
	return nil
}

// Unpause re-enables mutations.
func (e *Engine) Unpause(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.state.VaultSetPaused(false); err != nil {
		return fmt.Errorf("vault: store pause toggle: %w", err)
	}
	e.emit(events.VaultPauseChanged{Paused: false})
	return nil
}

// EmergencyWithdraw sweeps custody in excess of everything owed to users into
// the recipient account. Owed is counted as totalStaked plus both cooldown
// aggregates. Cooldown funds already sit inside totalStaked, so the bound
// overcounts and the sweep can never touch user funds; only stray direct
// transfers are recoverable this way.
func (e *Engine) EmergencyWithdraw(caller, recipient [20]byte) (*big.Int, error) {
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if isZeroAddress(recipient) {
		return nil, ErrZeroAddress
	}
	balance, err := e.token.BalanceOf(e.vaultAddr)
	if err != nil {
		return nil, fmt.Errorf("vault: custody balance: %w", err)
	}
	staked, err := e.state.VaultTotalStaked()
	if err != nil {
		return nil, err
	}
	cooldown, err := e.state.VaultTotalCooldown()
	if err != nil {
		return nil, err
	}
	early, err := e.state.VaultTotalEarlyCooldown()
	if err != nil {
		return nil, err
	}
	owed := new(big.Int).Add(cloneBigInt(staked), cooldown)
	owed.Add(owed, early)
	excess := new(big.Int).Sub(balance, owed)
	if excess.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if err := e.token.Transfer(e.vaultAddr, recipient, excess); err != nil {
		return nil, fmt.Errorf("vault: sweep excess: %w", err)
	}
	e.emit(events.VaultEmergencyWithdrawal{
		Recipient: recipient,
		Amount:    cloneBigInt(excess),
		Owed:      owed,
	})
	return excess, nil
}
