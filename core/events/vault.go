package events

import (
	"math/big"
	"strconv"

	"stakevault/core/types"
	"stakevault/crypto"
)

const (
	// TypeVaultStaked captures a freshly created position.
	TypeVaultStaked = "vault.staked"
	// TypeVaultAmountIncreased captures a principal top-up on an existing position.
	TypeVaultAmountIncreased = "vault.amountIncreased"
	// TypeVaultLockupIncreased captures an effective-lockup extension.
	TypeVaultLockupIncreased = "vault.lockupIncreased"
	// TypeVaultUnstakeInitiated captures the opening of a normal-exit cooldown.
	TypeVaultUnstakeInitiated = "vault.unstakeInitiated"
	// TypeVaultUnstaked captures a completed normal withdrawal.
	TypeVaultUnstaked = "vault.unstaked"
	// TypeVaultEarlyUnstakeInitiated captures the opening of an early-exit cooldown.
	TypeVaultEarlyUnstakeInitiated = "vault.earlyUnstakeInitiated"
	// TypeVaultEarlyUnstaked captures a completed early withdrawal and its penalty split.
	TypeVaultEarlyUnstaked = "vault.earlyUnstaked"
	// TypeVaultPenaltyApplied captures a quality-control clawback, full or partial.
	TypeVaultPenaltyApplied = "vault.penaltyApplied"
	// TypeVaultTreasuryUpdated signals an administrative treasury rotation.
	TypeVaultTreasuryUpdated = "vault.treasuryUpdated"
	// TypeVaultPaused and TypeVaultUnpaused track the mutation pause toggle.
	TypeVaultPaused   = "vault.paused"
	TypeVaultUnpaused = "vault.unpaused"
	// TypeVaultEmergencyWithdrawal captures an administrative sweep of excess custody.
	TypeVaultEmergencyWithdrawal = "vault.emergencyWithdrawal"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addrString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.StakePrefix, addr[:]).String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// VaultStaked is emitted when an empty position is initialised.
type VaultStaked struct {
	Owner          [20]byte
	Amount         *big.Int
	LockupPeriod   uint64
	Multiplier     uint64
	TotalStaked    *big.Int
	LastUpdateTime uint64
}

func (VaultStaked) EventType() string { return TypeVaultStaked }

func (e VaultStaked) Event() *types.Event {
	return &types.Event{Type: TypeVaultStaked, Attributes: map[string]string{
		"owner":       addrString(e.Owner),
		"amount":      amountString(e.Amount),
		"lockup":      formatUint(e.LockupPeriod),
		"multiplier":  formatUint(e.Multiplier),
		"totalStaked": amountString(e.TotalStaked),
		"updatedAt":   formatUint(e.LastUpdateTime),
	}}
}

// VaultAmountIncreased is emitted after a principal top-up is combined into a
// position.
type VaultAmountIncreased struct {
	Owner         [20]byte
	Added         *big.Int
	NewAmount     *big.Int
	WeightedStart uint64
	LockupPeriod  uint64
	Multiplier    uint64
}

func (VaultAmountIncreased) EventType() string { return TypeVaultAmountIncreased }

func (e VaultAmountIncreased) Event() *types.Event {
	return &types.Event{Type: TypeVaultAmountIncreased, Attributes: map[string]string{
		"owner":         addrString(e.Owner),
		"added":         amountString(e.Added),
		"newAmount":     amountString(e.NewAmount),
		"weightedStart": formatUint(e.WeightedStart),
		"lockup":        formatUint(e.LockupPeriod),
		"multiplier":    formatUint(e.Multiplier),
	}}
}

// VaultLockupIncreased is emitted after an extension changes (or re-anchors)
// the effective lockup.
type VaultLockupIncreased struct {
	Owner         [20]byte
	Requested     uint64
	WeightedStart uint64
	LockupPeriod  uint64
	Multiplier    uint64
}

func (VaultLockupIncreased) EventType() string { return TypeVaultLockupIncreased }

func (e VaultLockupIncreased) Event() *types.Event {
	return &types.Event{Type: TypeVaultLockupIncreased, Attributes: map[string]string{
		"owner":         addrString(e.Owner),
		"requested":     formatUint(e.Requested),
		"weightedStart": formatUint(e.WeightedStart),
		"lockup":        formatUint(e.LockupPeriod),
		"multiplier":    formatUint(e.Multiplier),
	}}
}

// VaultUnstakeInitiated is emitted when a matured-portion cooldown opens.
type VaultUnstakeInitiated struct {
	Owner         [20]byte
	Amount        *big.Int
	CooldownStart uint64
	ReleaseAt     uint64
}

func (VaultUnstakeInitiated) EventType() string { return TypeVaultUnstakeInitiated }

func (e VaultUnstakeInitiated) Event() *types.Event {
	return &types.Event{Type: TypeVaultUnstakeInitiated, Attributes: map[string]string{
		"owner":         addrString(e.Owner),
		"amount":        amountString(e.Amount),
		"cooldownStart": formatUint(e.CooldownStart),
		"releaseAt":     formatUint(e.ReleaseAt),
	}}
}

// VaultUnstaked is emitted when cooled-down funds are released at full value.
type VaultUnstaked struct {
	Owner       [20]byte
	Amount      *big.Int
	Remaining   *big.Int
	TotalStaked *big.Int
}

func (VaultUnstaked) EventType() string { return TypeVaultUnstaked }

func (e VaultUnstaked) Event() *types.Event {
	return &types.Event{Type: TypeVaultUnstaked, Attributes: map[string]string{
		"owner":       addrString(e.Owner),
		"amount":      amountString(e.Amount),
		"remaining":   amountString(e.Remaining),
		"totalStaked": amountString(e.TotalStaked),
	}}
}

// VaultEarlyUnstakeInitiated is emitted when a locked-portion cooldown opens.
type VaultEarlyUnstakeInitiated struct {
	Owner         [20]byte
	Amount        *big.Int
	CooldownStart uint64
	ReleaseAt     uint64
}

func (VaultEarlyUnstakeInitiated) EventType() string { return TypeVaultEarlyUnstakeInitiated }

func (e VaultEarlyUnstakeInitiated) Event() *types.Event {
	return &types.Event{Type: TypeVaultEarlyUnstakeInitiated, Attributes: map[string]string{
		"owner":         addrString(e.Owner),
		"amount":        amountString(e.Amount),
		"cooldownStart": formatUint(e.CooldownStart),
		"releaseAt":     formatUint(e.ReleaseAt),
	}}
}

// VaultEarlyUnstaked is emitted when penalised funds are released, recording
// the exact treasury/caller split.
type VaultEarlyUnstaked struct {
	Owner       [20]byte
	Amount      *big.Int
	Penalty     *big.Int
	Released    *big.Int
	Treasury    [20]byte
	TotalStaked *big.Int
}

func (VaultEarlyUnstaked) EventType() string { return TypeVaultEarlyUnstaked }

func (e VaultEarlyUnstaked) Event() *types.Event {
	return &types.Event{Type: TypeVaultEarlyUnstaked, Attributes: map[string]string{
		"owner":       addrString(e.Owner),
		"amount":      amountString(e.Amount),
		"penalty":     amountString(e.Penalty),
		"released":    amountString(e.Released),
		"treasury":    addrString(e.Treasury),
		"totalStaked": amountString(e.TotalStaked),
	}}
}

// VaultPenaltyApplied is emitted for every quality-control clawback, including
// partial applications where Applied is less than Requested.
type VaultPenaltyApplied struct {
	Owner     [20]byte
	Requested *big.Int
	Applied   *big.Int
	Remaining *big.Int
	Treasury  [20]byte
}

func (VaultPenaltyApplied) EventType() string { return TypeVaultPenaltyApplied }

func (e VaultPenaltyApplied) Event() *types.Event {
	return &types.Event{Type: TypeVaultPenaltyApplied, Attributes: map[string]string{
		"owner":     addrString(e.Owner),
		"requested": amountString(e.Requested),
		"applied":   amountString(e.Applied),
		"remaining": amountString(e.Remaining),
		"treasury":  addrString(e.Treasury),
	}}
}

// VaultTreasuryUpdated is emitted when the penalty recipient is rotated.
type VaultTreasuryUpdated struct {
	Previous [20]byte
	Current  [20]byte
}

func (VaultTreasuryUpdated) EventType() string { return TypeVaultTreasuryUpdated }

func (e VaultTreasuryUpdated) Event() *types.Event {
	return &types.Event{Type: TypeVaultTreasuryUpdated, Attributes: map[string]string{
		"previous": addrString(e.Previous),
		"current":  addrString(e.Current),
	}}
}

// VaultPauseChanged is emitted on pause and unpause transitions.
type VaultPauseChanged struct {
	Paused bool
}

func (e VaultPauseChanged) EventType() string {
	if e.Paused {
		return TypeVaultPaused
	}
	return TypeVaultUnpaused
}

func (e VaultPauseChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{}}
}

// VaultEmergencyWithdrawal is emitted when excess custody is swept by an
// administrator.
type VaultEmergencyWithdrawal struct {
	Recipient [20]byte
	Amount    *big.Int
	Owed      *big.Int
}

func (VaultEmergencyWithdrawal) EventType() string { return TypeVaultEmergencyWithdrawal }

func (e VaultEmergencyWithdrawal) Event() *types.Event {
	return &types.Event{Type: TypeVaultEmergencyWithdrawal, Attributes: map[string]string{
		"recipient": addrString(e.Recipient),
		"amount":    amountString(e.Amount),
		"owed":      amountString(e.Owed),
	}}
}
