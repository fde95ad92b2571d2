package types

import "math/big"

// Account holds the fungible token balance tracked for a participant. The
// vault never stores stake inside the account record; custody is expressed as
// a balance on the vault module account while per-user accounting lives in the
// position ledger.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// EnsureAccount normalises a possibly-nil account into a usable value.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}
