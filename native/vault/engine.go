package vault

import (
	"fmt"
	"math/big"
	"time"

	"stakevault/core/events"
	"stakevault/core/types"
)

// EngineState is the narrow slice of state the vault engine mutates. The
// surrounding transaction machinery guarantees all-or-nothing application of
// every operation's writes.
type EngineState interface {
	VaultGetPosition(owner [20]byte) (*Position, bool, error)
	VaultPutPosition(owner [20]byte, position *Position) error
	VaultDeletePosition(owner [20]byte) error
	VaultTotalStaked() (*big.Int, error)
	VaultSetTotalStaked(total *big.Int) error
	VaultTotalCooldown() (*big.Int, error)
	VaultSetTotalCooldown(total *big.Int) error
	VaultTotalEarlyCooldown() (*big.Int, error)
	VaultSetTotalEarlyCooldown(total *big.Int) error
	VaultTreasury() ([20]byte, error)
	VaultSetTreasury(addr [20]byte) error
	VaultMaxStake() (*big.Int, bool, error)
	VaultSetMaxStake(amount *big.Int) error
	VaultPaused() (bool, error)
	VaultSetPaused(paused bool) error
	HasRole(role string, addr []byte) bool
	ReplaceRole(role string, addr []byte) error
}

// TokenLedger is the fungible-balance collaborator. Transfers participate in
// the same atomic unit as the engine's ledger writes.
type TokenLedger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine wires the staking-vault business logic with external state, the
// token ledger and an event emitter.
type Engine struct {
	state     EngineState
	token     TokenLedger
	emitter   events.Emitter
	params    Params
	vaultAddr [20]byte
	nowFn     func() int64
}

// NewEngine creates a vault engine with default params and a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetToken configures the fungible-balance ledger.
func (e *Engine) SetToken(token TokenLedger) { e.token = token }

// SetVaultAddress configures the module account holding staked custody.
func (e *Engine) SetVaultAddress(addr [20]byte) { e.vaultAddr = addr }

// SetParams replaces the vault economics. The caller validates beforehand.
func (e *Engine) SetParams(params Params) { e.params = params.Clone() }

// Params returns a copy of the configured economics.
func (e *Engine) Params() Params { return e.params.Clone() }

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event interface{ Event() *types.Event }) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event.Event()})
}

func (e *Engine) now() uint64 {
	ts := time.Now().Unix()
	if e != nil && e.nowFn != nil {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.token == nil {
		return errNilToken
	}
	var zero [20]byte
	if e.vaultAddr == zero {
		return errNoVault
	}
	return nil
}

func (e *Engine) requireUnpaused() error {
	paused, err := e.state.VaultPaused()
	if err != nil {
		return fmt.Errorf("vault: load pause toggle: %w", err)
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func (e *Engine) loadPosition(owner [20]byte) (*Position, error) {
	position, ok, err := e.state.VaultGetPosition(owner)
	if err != nil {
		return nil, fmt.Errorf("vault: load position: %w", err)
	}
	if !ok {
		return EnsurePosition(nil), nil
	}
	return EnsurePosition(position), nil
}

// storePosition persists the record, or removes it entirely once it has
// returned to the empty state so a revived stake starts from a clean slate.
func (e *Engine) storePosition(owner [20]byte, position *Position) error {
	if !position.Active() && !position.CooldownOpen() {
		return e.state.VaultDeletePosition(owner)
	}
	return e.state.VaultPutPosition(owner, position)
}

func (e *Engine) adjustAggregate(
	load func() (*big.Int, error),
	store func(*big.Int) error,
	delta *big.Int,
) error {
	total, err := load()
	if err != nil {
		return err
	}
	total = cloneBigInt(total)
	total.Add(total, delta)
	if total.Sign() < 0 {
		return ErrArithmetic
	}
	return store(total)
}

func (e *Engine) addTotalStaked(delta *big.Int) error {
	return e.adjustAggregate(e.state.VaultTotalStaked, e.state.VaultSetTotalStaked, delta)
}

func (e *Engine) addTotalCooldown(delta *big.Int) error {
	return e.adjustAggregate(e.state.VaultTotalCooldown, e.state.VaultSetTotalCooldown, delta)
}

func (e *Engine) addTotalEarlyCooldown(delta *big.Int) error {
	return e.adjustAggregate(e.state.VaultTotalEarlyCooldown, e.state.VaultSetTotalEarlyCooldown, delta)
}

func (e *Engine) maxStake() (*big.Int, error) {
	stored, ok, err := e.state.VaultMaxStake()
	if err != nil {
		return nil, fmt.Errorf("vault: load max stake: %w", err)
	}
	if ok {
		return stored, nil
	}
	return cloneBigInt(e.params.MaxStake), nil
}

func (e *Engine) refreshMultiplier(position *Position) error {
	multiplier, err := e.params.CalculateMultiplier(position.Amount, position.EffectiveLockupPeriod)
	if err != nil {
		return err
	}
	position.EffectiveMultiplier = multiplier
	return nil
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// Stake initialises a position for a user without one. The amount is pulled
// from the caller's token balance into vault custody within the same atomic
// unit.
func (e *Engine) Stake(owner [20]byte, amount *big.Int, duration uint64) (*Position, error) {
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
	if !e.params.SupportedDuration(duration) {
		return nil, ErrUnsupportedDuration
	}
	if amount.Cmp(e.params.MinStake) < 0 {
		return nil, ErrAmountOutOfRange
	}
	maximum, err := e.maxStake()
	if err != nil {
		return nil, err
	}
	if amount.Cmp(maximum) > 0 {
		return nil, ErrAmountOutOfRange
	}
	position, err := e.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	if position.Active() || position.CooldownOpen() {
		return nil, ErrPositionExists
	}

	now := e.now()
	position.Amount = cloneBigInt(amount)
	position.WeightedStartTime = now
	position.EffectiveLockupPeriod = duration
	position.LastUpdateTime = now
	if err := e.refreshMultiplier(position); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(owner, e.vaultAddr, amount); err != nil {
		return nil, fmt.Errorf("vault: pull stake: %w", err)
	}
	if err := e.addTotalStaked(amount); err != nil {
		return nil, err
	}
	if err := e.storePosition(owner, position); err != nil {
		return nil, err
	}
	total, err := e.state.VaultTotalStaked()
	if err != nil {
		return nil, err
	}
	e.emit(events.VaultStaked{
		Owner:          owner,
		Amount:         cloneBigInt(amount),
		LockupPeriod:   duration,
		Multiplier:     position.EffectiveMultiplier,
		TotalStaked:    total,
		LastUpdateTime: now,
	})
	return position.Clone(), nil
}

// IncreaseAmount tops up an existing position. Requires that no cooldown of
// either kind is outstanding; the merged schedule follows the weighted-average
// rule and the effective lockup period never shrinks.
func (e *Engine) IncreaseAmount(owner [20]byte, delta *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if isZeroAddress(owner) {
		return nil, ErrZeroAddress
	}
	if delta == nil || delta.Sign() <= 0 {
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
	newAmount := new(big.Int).Add(position.Amount, delta)
	maximum, err := e.maxStake()
	if err != nil {
		return nil, err
	}
	if newAmount.Cmp(maximum) > 0 {
		return nil, ErrAmountOutOfRange
	}

	now := e.now()
	newStart, newDuration, err := CombineAmount(
		now, position.WeightedStartTime, position.EffectiveLockupPeriod, position.Amount, delta)
	if err != nil {
		return nil, err
	}
	position.Amount = newAmount
	position.WeightedStartTime = newStart
	position.EffectiveLockupPeriod = newDuration
	position.LastUpdateTime = now
	if err := e.refreshMultiplier(position); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(owner, e.vaultAddr, delta); err != nil {
		return nil, fmt.Errorf("vault: pull stake: %w", err)
	}
	if err := e.addTotalStaked(delta); err != nil {
		return nil, err
	}
	if err := e.storePosition(owner, position); err != nil {
		return nil, err
	}
	e.emit(events.VaultAmountIncreased{
		Owner:         owner,
		Added:         cloneBigInt(delta),
		NewAmount:     cloneBigInt(position.Amount),
		WeightedStart: position.WeightedStartTime,
		LockupPeriod:  position.EffectiveLockupPeriod,
		Multiplier:    position.EffectiveMultiplier,
	})
	return position.Clone(), nil
}

// IncreaseLockup extends the effective lockup. The request is a full period
// measured from now; requests at or below the current remainder leave the
// schedule untouched.
func (e *Engine) IncreaseLockup(owner [20]byte, requested uint64) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if isZeroAddress(owner) {
		return nil, ErrZeroAddress
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
	newStart, newDuration, err := CombineLockup(
		now, position.WeightedStartTime, position.EffectiveLockupPeriod, requested)
	if err != nil {
		return nil, err
	}
	position.WeightedStartTime = newStart
	position.EffectiveLockupPeriod = newDuration
	position.LastUpdateTime = now
	if err := e.refreshMultiplier(position); err != nil {
		return nil, err
	}
	if err := e.storePosition(owner, position); err != nil {
		return nil, err
	}
	e.emit(events.VaultLockupIncreased{
		Owner:         owner,
		Requested:     requested,
		WeightedStart: position.WeightedStartTime,
		LockupPeriod:  position.EffectiveLockupPeriod,
		Multiplier:    position.EffectiveMultiplier,
	})
	return position.Clone(), nil
}

// IncreaseStake composes an extension and a top-up in that fixed order. The
// ordering is documented behaviour: applying the extension first makes the
// resulting effective lockup exactly the requested period (when it
// dominates), the minimal duration among the two orders.
func (e *Engine) IncreaseStake(owner [20]byte, amountDelta *big.Int, requested uint64) (*Position, error) {
	if _, err := e.IncreaseLockup(owner, requested); err != nil {
		return nil, err
	}
	return e.IncreaseAmount(owner, amountDelta)
}
