// Package token implements the fungible-balance ledger the vault draws on.
// The vault engine only sees the narrow transfer/balance interface; this
// module keeps balances in account records behind the state manager so token
// movement shares the engine's atomic unit.
package token

import (
	"errors"
	"fmt"
	"math/big"

	"stakevault/core/types"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the sender's
	// balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	errNilState            = errors.New("token: state not configured")
)

// State is the account storage the ledger operates on.
type State interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Module moves balances between accounts.
type Module struct {
	state State
}

// NewModule creates a ledger over the provided account state.
func NewModule(state State) *Module {
	return &Module{state: state}
}

// BalanceOf returns the current balance of addr.
func (m *Module) BalanceOf(addr [20]byte) (*big.Int, error) {
	if m == nil || m.state == nil {
		return nil, errNilState
	}
	account, err := m.state.GetAccount(addr[:])
	if err != nil {
		return nil, fmt.Errorf("token: load account: %w", err)
	}
	return new(big.Int).Set(account.Balance), nil
}

// Transfer moves amount from one account to another. Zero-amount transfers
// are no-ops; negative amounts are rejected.
func (m *Module) Transfer(from, to [20]byte, amount *big.Int) error {
	if m == nil || m.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: transfer amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	if from == to {
		return nil
	}
	sender, err := m.state.GetAccount(from[:])
	if err != nil {
		return fmt.Errorf("token: load sender: %w", err)
	}
	if sender.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	receiver, err := m.state.GetAccount(to[:])
	if err != nil {
		return fmt.Errorf("token: load receiver: %w", err)
	}
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	receiver.Balance = new(big.Int).Add(receiver.Balance, amount)
	if err := m.state.PutAccount(from[:], sender); err != nil {
		return fmt.Errorf("token: store sender: %w", err)
	}
	if err := m.state.PutAccount(to[:], receiver); err != nil {
		return fmt.Errorf("token: store receiver: %w", err)
	}
	return nil
}

// Mint credits freshly issued balance to an account. Used for genesis
// allocations only; the vault itself never mints.
func (m *Module) Mint(to [20]byte, amount *big.Int) error {
	if m == nil || m.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: mint amount must be positive")
	}
	account, err := m.state.GetAccount(to[:])
	if err != nil {
		return fmt.Errorf("token: load account: %w", err)
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := m.state.PutAccount(to[:], account); err != nil {
		return fmt.Errorf("token: store account: %w", err)
	}
	return nil
}
