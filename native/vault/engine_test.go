package vault

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"stakevault/core/events"
)

type mockState struct {
	positions          map[[20]byte]*Position
	totalStaked        *big.Int
	totalCooldown      *big.Int
	totalEarlyCooldown *big.Int
	treasury           [20]byte
	maxStake           *big.Int
	maxStakeSet        bool
	paused             bool
	roles              map[string]string
}

func newMockState() *mockState {
	return &mockState{
		positions:          make(map[[20]byte]*Position),
		totalStaked:        big.NewInt(0),
		totalCooldown:      big.NewInt(0),
		totalEarlyCooldown: big.NewInt(0),
		roles:              make(map[string]string),
	}
}

func (m *mockState) VaultGetPosition(owner [20]byte) (*Position, bool, error) {
	position, ok := m.positions[owner]
	if !ok {
		return nil, false, nil
	}
	return position.Clone(), true, nil
}

func (m *mockState) VaultPutPosition(owner [20]byte, position *Position) error {
	if position == nil {
		return fmt.Errorf("nil position")
	}
	m.positions[owner] = position.Clone()
	return nil
}

func (m *mockState) VaultDeletePosition(owner [20]byte) error {
	delete(m.positions, owner)
	return nil
}

func (m *mockState) VaultTotalStaked() (*big.Int, error) {
	return new(big.Int).Set(m.totalStaked), nil
}

func (m *mockState) VaultSetTotalStaked(total *big.Int) error {
	m.totalStaked = new(big.Int).Set(total)
	return nil
}

func (m *mockState) VaultTotalCooldown() (*big.Int, error) {
	return new(big.Int).Set(m.totalCooldown), nil
}

func (m *mockState) VaultSetTotalCooldown(total *big.Int) error {
	m.totalCooldown = new(big.Int).Set(total)
	return nil
}

func (m *mockState) VaultTotalEarlyCooldown() (*big.Int, error) {
	return new(big.Int).Set(m.totalEarlyCooldown), nil
}

func (m *mockState) VaultSetTotalEarlyCooldown(total *big.Int) error {
	m.totalEarlyCooldown = new(big.Int).Set(total)
	return nil
}

func (m *mockState) VaultTreasury() ([20]byte, error) { return m.treasury, nil }

func (m *mockState) VaultSetTreasury(addr [20]byte) error {
	m.treasury = addr
	return nil
}

func (m *mockState) VaultMaxStake() (*big.Int, bool, error) {
	if !m.maxStakeSet {
		return nil, false, nil
	}
	return new(big.Int).Set(m.maxStake), true, nil
}

func (m *mockState) VaultSetMaxStake(amount *big.Int) error {
	m.maxStake = new(big.Int).Set(amount)
	m.maxStakeSet = true
	return nil
}

func (m *mockState) VaultPaused() (bool, error) { return m.paused, nil }

func (m *mockState) VaultSetPaused(paused bool) error {
	m.paused = paused
	return nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	member, ok := m.roles[role]
	return ok && member == string(addr)
}

func (m *mockState) ReplaceRole(role string, addr []byte) error {
	m.roles[role] = string(addr)
	return nil
}

type mockLedger struct {
	balances map[[20]byte]*big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[[20]byte]*big.Int)}
}

func (m *mockLedger) balance(addr [20]byte) *big.Int {
	if existing, ok := m.balances[addr]; ok {
		return existing
	}
	fresh := big.NewInt(0)
	m.balances[addr] = fresh
	return fresh
}

func (m *mockLedger) fund(addr [20]byte, amount int64) {
	m.balances[addr] = big.NewInt(amount)
}

func (m *mockLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	src := m.balance(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}
	src.Sub(src, amount)
	m.balance(to).Add(m.balance(to), amount)
	return nil
}

func (m *mockLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	return new(big.Int).Set(m.balance(addr)), nil
}

type eventRecorder struct {
	emitted []events.Event
}

func (r *eventRecorder) Emit(evt events.Event) {
	r.emitted = append(r.emitted, evt)
}

func (r *eventRecorder) lastType() string {
	if len(r.emitted) == 0 {
		return ""
	}
	return r.emitted[len(r.emitted)-1].EventType()
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

const testNow = int64(1_700_000_000)

type engineFixture struct {
	engine   *Engine
	state    *mockState
	ledger   *mockLedger
	recorder *eventRecorder
	now      int64

	vault    [20]byte
	treasury [20]byte
	admin    [20]byte
	quality  [20]byte
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	fx := &engineFixture{
		state:    newMockState(),
		ledger:   newMockLedger(),
		recorder: &eventRecorder{},
		now:      testNow,
		vault:    newTestAddress(0xAA),
		treasury: newTestAddress(0xBB),
		admin:    newTestAddress(0xCC),
		quality:  newTestAddress(0xDD),
	}
	fx.state.treasury = fx.treasury
	fx.state.roles[RoleAdmin] = string(fx.admin[:])
	fx.state.roles[RoleQuality] = string(fx.quality[:])

	engine := NewEngine()
	engine.SetState(fx.state)
	engine.SetToken(fx.ledger)
	engine.SetVaultAddress(fx.vault)
	engine.SetEmitter(fx.recorder)
	engine.SetNowFunc(func() int64 { return fx.now })
	fx.engine = engine
	return fx
}

func (fx *engineFixture) advance(seconds uint64) {
	fx.now += int64(seconds)
}

func (fx *engineFixture) mustStake(t *testing.T, owner [20]byte, amount int64, duration uint64) *Position {
	t.Helper()
	position, err := fx.engine.Stake(owner, big.NewInt(amount), duration)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	return position
}

func TestStakeCreatesPosition(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 5_000)

	position := fx.mustStake(t, owner, 1_000, 30*day)

	if position.Amount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected amount: %s", position.Amount)
	}
	if position.WeightedStartTime != uint64(testNow) {
		t.Fatalf("unexpected start: %d", position.WeightedStartTime)
	}
	if position.EffectiveLockupPeriod != 30*day {
		t.Fatalf("unexpected lockup: %d", position.EffectiveLockupPeriod)
	}
	if position.EffectiveMultiplier != 10_000 {
		t.Fatalf("unexpected multiplier: %d", position.EffectiveMultiplier)
	}
	if balance, _ := fx.ledger.BalanceOf(owner); balance.Cmp(big.NewInt(4_000)) != 0 {
		t.Fatalf("owner balance not debited: %s", balance)
	}
	if balance, _ := fx.ledger.BalanceOf(fx.vault); balance.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("vault custody not credited: %s", balance)
	}
	if fx.state.totalStaked.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("total staked not updated: %s", fx.state.totalStaked)
	}
	if got := fx.recorder.lastType(); got != events.TypeVaultStaked {
		t.Fatalf("unexpected event type: %q", got)
	}
}

func TestStakeValidation(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 20_000_000)

	if _, err := fx.engine.Stake([20]byte{}, big.NewInt(100), 30*day); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if _, err := fx.engine.Stake(owner, nil, 30*day); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if _, err := fx.engine.Stake(owner, big.NewInt(100), 31*day); !errors.Is(err, ErrUnsupportedDuration) {
		t.Fatalf("expected ErrUnsupportedDuration, got %v", err)
	}
	if _, err := fx.engine.Stake(owner, big.NewInt(10_000_001), 30*day); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}

	fx.mustStake(t, owner, 1_000, 30*day)
	if _, err := fx.engine.Stake(owner, big.NewInt(100), 30*day); !errors.Is(err, ErrPositionExists) {
		t.Fatalf("expected ErrPositionExists, got %v", err)
	}
}

func TestStakeRejectedWhilePaused(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 1_000)
	fx.state.paused = true

	if _, err := fx.engine.Stake(owner, big.NewInt(100), 30*day); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
}

func TestIncreaseAmountMergesWeightedAverage(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 10_000)

	fx.mustStake(t, owner, 1_000, 90*day)
	fx.advance(45 * day)

	position, err := fx.engine.IncreaseAmount(owner, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("increase amount: %v", err)
	}
	if position.Amount.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("unexpected amount: %s", position.Amount)
	}
	if position.EffectiveLockupPeriod != 90*day {
		t.Fatalf("lockup changed on top-up: %d", position.EffectiveLockupPeriod)
	}
	// Equal halves: merged remainder is (45d + 90d) / 2, so the schedule
	// matures 67.5 days from the top-up.
	wantMature := uint64(fx.now) + 67*day + day/2
	if got := position.MaturesAt(); got != wantMature {
		t.Fatalf("maturity = %d, want %d", got, wantMature)
	}
	if got := fx.recorder.lastType(); got != events.TypeVaultAmountIncreased {
		t.Fatalf("unexpected event type: %q", got)
	}
}

func TestIncreaseAmountRequiresQuietPosition(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 10_000)

	if _, err := fx.engine.IncreaseAmount(owner, big.NewInt(100)); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}

	fx.mustStake(t, owner, 1_000, 30*day)
	fx.advance(31 * day)
	if _, err := fx.engine.InitiateUnstake(owner, big.NewInt(400)); err != nil {
		t.Fatalf("initiate unstake: %v", err)
	}
	if _, err := fx.engine.IncreaseAmount(owner, big.NewInt(100)); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
}

func TestIncreaseAmountHonoursCeiling(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 10_000)
	if err := fx.state.VaultSetMaxStake(big.NewInt(1_500)); err != nil {
		t.Fatalf("set max stake: %v", err)
	}

	fx.mustStake(t, owner, 1_000, 30*day)
	if _, err := fx.engine.IncreaseAmount(owner, big.NewInt(600)); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}
	if _, err := fx.engine.IncreaseAmount(owner, big.NewInt(500)); err != nil {
		t.Fatalf("top-up within ceiling: %v", err)
	}
}

func TestIncreaseLockupExtends(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 10_000)

	fx.mustStake(t, owner, 1_000, 30*day)
	fx.advance(10 * day)

	position, err := fx.engine.IncreaseLockup(owner, 90*day)
	if err != nil {
		t.Fatalf("increase lockup: %v", err)
	}
	if position.WeightedStartTime != uint64(fx.now) {
		t.Fatalf("expected re-anchor at now, got %d", position.WeightedStartTime)
	}
	if position.EffectiveLockupPeriod != 90*day {
		t.Fatalf("unexpected lockup: %d", position.EffectiveLockupPeriod)
	}
	if position.EffectiveMultiplier != 12_000 {
		t.Fatalf("multiplier not refreshed: %d", position.EffectiveMultiplier)
	}
}

func TestIncreaseLockupBelowRemainderIsNoop(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 10_000)

	before := fx.mustStake(t, owner, 1_000, 365*day)
	fx.advance(day)

	position, err := fx.engine.IncreaseLockup(owner, 30*day)
	if err != nil {
		t.Fatalf("increase lockup: %v", err)
	}
	if position.WeightedStartTime != before.WeightedStartTime {
		t.Fatalf("schedule moved on no-op request")
	}
	if position.EffectiveLockupPeriod != 365*day {
		t.Fatalf("lockup changed on no-op request: %d", position.EffectiveLockupPeriod)
	}
}

func TestIncreaseStakeAppliesExtensionFirst(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 10_000)

	fx.mustStake(t, owner, 1_000, 30*day)
	fx.advance(20 * day)

	position, err := fx.engine.IncreaseStake(owner, big.NewInt(1_000), 90*day)
	if err != nil {
		t.Fatalf("increase stake: %v", err)
	}
	// Extension first re-anchors to exactly 90d; the top-up then merges two
	// equal halves both carrying a full 90d remainder, leaving the schedule
	// untouched.
	if position.EffectiveLockupPeriod != 90*day {
		t.Fatalf("unexpected lockup: %d", position.EffectiveLockupPeriod)
	}
	if got := position.MaturesAt(); got != uint64(fx.now)+90*day {
		t.Fatalf("maturity = %d, want %d", got, uint64(fx.now)+90*day)
	}
}

func TestIncreaseStakeOrderYieldsShortestLockup(t *testing.T) {
	run := func(t *testing.T, extendFirst bool) uint64 {
		fx := newEngineFixture(t)
		owner := newTestAddress(0x01)
		fx.ledger.fund(owner, 10_000)
		fx.mustStake(t, owner, 1_000, 180*day)
		fx.advance(30 * day)

		var position *Position
		var err error
		if extendFirst {
			position, err = fx.engine.IncreaseStake(owner, big.NewInt(3_000), 90*day)
		} else {
			if _, err = fx.engine.IncreaseAmount(owner, big.NewInt(3_000)); err == nil {
				position, err = fx.engine.IncreaseLockup(owner, 90*day)
			}
		}
		if err != nil {
			t.Fatalf("combined mutation: %v", err)
		}
		return position.MaturesAt() - uint64(fx.now)
	}

	composed := run(t, true)
	reversed := run(t, false)
	if composed > reversed {
		t.Fatalf("composed order remainder %d exceeds reversed order %d", composed, reversed)
	}
}

func TestSetTreasuryRequiresAdmin(t *testing.T) {
	fx := newEngineFixture(t)
	outsider := newTestAddress(0x01)
	next := newTestAddress(0x02)

	if err := fx.engine.SetTreasury(outsider, next); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := fx.engine.SetTreasury(fx.admin, [20]byte{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := fx.engine.SetTreasury(fx.admin, next); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	if fx.state.treasury != next {
		t.Fatalf("treasury not rotated")
	}
	if got := fx.recorder.lastType(); got != events.TypeVaultTreasuryUpdated {
		t.Fatalf("unexpected event type: %q", got)
	}
}

func TestSetQualityCallerReplacesRole(t *testing.T) {
	fx := newEngineFixture(t)
	next := newTestAddress(0x02)

	if err := fx.engine.SetQualityCaller(fx.admin, next); err != nil {
		t.Fatalf("set quality caller: %v", err)
	}
	if !fx.state.HasRole(RoleQuality, next[:]) {
		t.Fatalf("quality role not assigned")
	}
	if fx.state.HasRole(RoleQuality, fx.quality[:]) {
		t.Fatalf("previous quality caller retained role")
	}
}

func TestSetMaxStakeBounds(t *testing.T) {
	fx := newEngineFixture(t)

	if err := fx.engine.SetMaxStake(fx.admin, big.NewInt(0)); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}
	if err := fx.engine.SetMaxStake(fx.admin, big.NewInt(5_000)); err != nil {
		t.Fatalf("set max stake: %v", err)
	}
	maximum, err := fx.engine.MaxStake()
	if err != nil {
		t.Fatalf("max stake: %v", err)
	}
	if maximum.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("unexpected max stake: %s", maximum)
	}
}

func TestPauseBlocksMutationsNotAdmin(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	fx.ledger.fund(owner, 1_000)

	if err := fx.engine.Pause(fx.admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := fx.engine.Stake(owner, big.NewInt(100), 30*day); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	// Admin operations stay available while paused.
	if err := fx.engine.SetMaxStake(fx.admin, big.NewInt(5_000)); err != nil {
		t.Fatalf("admin op while paused: %v", err)
	}
	if err := fx.engine.Unpause(fx.admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := fx.engine.Stake(owner, big.NewInt(100), 30*day); err != nil {
		t.Fatalf("stake after unpause: %v", err)
	}
}

func TestEmergencyWithdrawSweepsOnlyExcess(t *testing.T) {
	fx := newEngineFixture(t)
	owner := newTestAddress(0x01)
	recipient := newTestAddress(0x02)
	fx.ledger.fund(owner, 5_000)

	fx.mustStake(t, owner, 1_000, 30*day)

	// Custody matches obligations exactly, nothing to sweep.
	swept, err := fx.engine.EmergencyWithdraw(fx.admin, recipient)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if swept.Sign() != 0 {
		t.Fatalf("swept user funds: %s", swept)
	}

	// A stray direct transfer into custody is recoverable.
	if err := fx.ledger.Transfer(owner, fx.vault, big.NewInt(250)); err != nil {
		t.Fatalf("stray transfer: %v", err)
	}
	swept, err = fx.engine.EmergencyWithdraw(fx.admin, recipient)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if swept.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("unexpected sweep: %s", swept)
	}
	if balance, _ := fx.ledger.BalanceOf(recipient); balance.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("recipient not credited: %s", balance)
	}
	if _, err := fx.engine.EmergencyWithdraw(owner, recipient); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
