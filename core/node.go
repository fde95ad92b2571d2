package core

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/core/types"
	"stakevault/crypto"
	"stakevault/native/vault"
	"stakevault/observability"
	"stakevault/storage"
	"stakevault/token"
)

// maxRecentEvents bounds the in-memory event buffer served over RPC.
const maxRecentEvents = 1024

// GenesisAlloc seeds a token balance at first boot.
type GenesisAlloc struct {
	Address crypto.Address
	Balance *big.Int
}

// NodeConfig wires the vault's initial economics and identities.
type NodeConfig struct {
	Params       vault.Params
	VaultAddress crypto.Address
	Treasury     crypto.Address
	Admin        crypto.Address
	Quality      crypto.Address
	Genesis      []GenesisAlloc
}

// Node owns the shared state and serialises every mutating operation. Each
// operation stages its writes in the state overlay and either commits in full
// or reverts, so no caller ever observes partial effects.
type Node struct {
	stateMu sync.Mutex
	db      storage.Database
	manager *state.Manager
	token   *token.Module
	engine  *vault.Engine

	eventMu sync.Mutex
	events  []types.Event
}

type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	e.node.appendEvent(carrier.Event())
}

// NewNode builds the state manager, token ledger and vault engine on top of
// the database, applying genesis allocations and role assignments on first
// boot.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.VaultAddress.IsZero() {
		return nil, fmt.Errorf("node: vault custody address required")
	}
	if cfg.Treasury.IsZero() {
		return nil, fmt.Errorf("node: treasury address required")
	}
	if cfg.Admin.IsZero() {
		return nil, fmt.Errorf("node: admin address required")
	}

	node := &Node{db: db}
	node.manager = state.NewManager(db)
	node.token = token.NewModule(node.manager)
	engine := vault.NewEngine()
	engine.SetState(node.manager)
	engine.SetToken(node.token)
	engine.SetVaultAddress(cfg.VaultAddress.Array())
	engine.SetParams(cfg.Params)
	engine.SetEmitter(nodeEmitter{node: node})
	node.engine = engine

	if err := node.initGenesis(cfg); err != nil {
		return nil, err
	}
	return node, nil
}

func (n *Node) initGenesis(cfg NodeConfig) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	done, err := n.manager.GenesisDone()
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	n.manager.Begin()
	fail := func(err error) error {
		n.manager.Revert()
		return err
	}
	if err := n.manager.VaultSetTreasury(cfg.Treasury.Array()); err != nil {
		return fail(err)
	}
	if err := n.manager.SetRole(vault.RoleAdmin, cfg.Admin.Bytes()); err != nil {
		return fail(err)
	}
	if !cfg.Quality.IsZero() {
		if err := n.manager.ReplaceRole(vault.RoleQuality, cfg.Quality.Bytes()); err != nil {
			return fail(err)
		}
	}
	for _, alloc := range cfg.Genesis {
		if alloc.Address.IsZero() || alloc.Balance == nil || alloc.Balance.Sign() <= 0 {
			return fail(fmt.Errorf("node: invalid genesis allocation"))
		}
		if err := n.token.Mint(alloc.Address.Array(), alloc.Balance); err != nil {
			return fail(err)
		}
	}
	if err := n.manager.SetGenesisDone(); err != nil {
		return fail(err)
	}
	return n.manager.Commit()
}

func (n *Node) appendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	n.events = append(n.events, *evt)
	if len(n.events) > maxRecentEvents {
		n.events = n.events[len(n.events)-maxRecentEvents:]
	}
}

// RecentEvents returns a copy of the buffered event log, newest last.
func (n *Node) RecentEvents() []types.Event {
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	out := make([]types.Event, len(n.events))
	copy(out, n.events)
	return out
}

// withWrite serialises a mutating operation and gives it all-or-nothing
// semantics over the state overlay.
func (n *Node) withWrite(op string, fn func() error) error {
	start := time.Now()
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.manager.Begin()
	err := fn()
	if err != nil {
		n.manager.Revert()
	} else {
		err = n.manager.Commit()
	}
	observability.VaultMetrics().Observe(op, start, err)
	if err == nil {
		if total, terr := n.manager.VaultTotalStaked(); terr == nil {
			approx, _ := new(big.Float).SetInt(total).Float64()
			observability.VaultMetrics().SetTotalStaked(approx)
		}
	}
	return err
}

func (n *Node) withRead(op string, fn func() error) error {
	start := time.Now()
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	err := fn()
	observability.VaultMetrics().Observe(op, start, err)
	return err
}

// SetNowFunc overrides the engine clock. Tests only.
func (n *Node) SetNowFunc(now func() int64) {
	n.engine.SetNowFunc(now)
}

// --- Vault mutations ---

func (n *Node) VaultStake(owner crypto.Address, amount *big.Int, duration uint64) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("stake", func() error {
		var opErr error
		position, opErr = n.engine.Stake(owner.Array(), amount, duration)
		return opErr
	})
	return position, err
}

func (n *Node) VaultIncreaseAmount(owner crypto.Address, delta *big.Int) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("increaseAmount", func() error {
		var opErr error
		position, opErr = n.engine.IncreaseAmount(owner.Array(), delta)
		return opErr
	})
	return position, err
}

func (n *Node) VaultIncreaseLockup(owner crypto.Address, requested uint64) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("increaseLockup", func() error {
		var opErr error
		position, opErr = n.engine.IncreaseLockup(owner.Array(), requested)
		return opErr
	})
	return position, err
}

func (n *Node) VaultIncreaseStake(owner crypto.Address, delta *big.Int, requested uint64) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("increaseStake", func() error {
		var opErr error
		position, opErr = n.engine.IncreaseStake(owner.Array(), delta, requested)
		return opErr
	})
	return position, err
}

func (n *Node) VaultInitiateUnstake(owner crypto.Address, amount *big.Int) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("initiateUnstake", func() error {
		var opErr error
		position, opErr = n.engine.InitiateUnstake(owner.Array(), amount)
		return opErr
	})
	return position, err
}

func (n *Node) VaultUnstake(owner crypto.Address, amount *big.Int) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("unstake", func() error {
		var opErr error
		position, opErr = n.engine.Unstake(owner.Array(), amount)
		return opErr
	})
	return position, err
}

func (n *Node) VaultInitiateEarlyUnstake(owner crypto.Address, amount *big.Int) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("initiateEarlyUnstake", func() error {
		var opErr error
		position, opErr = n.engine.InitiateEarlyUnstake(owner.Array(), amount)
		return opErr
	})
	return position, err
}

func (n *Node) VaultEarlyUnstake(owner crypto.Address, amount *big.Int) (*vault.Position, error) {
	var position *vault.Position
	err := n.withWrite("earlyUnstake", func() error {
		var opErr error
		position, opErr = n.engine.EarlyUnstake(owner.Array(), amount)
		return opErr
	})
	return position, err
}

func (n *Node) VaultProcessQAPenalty(caller, user crypto.Address, requested *big.Int) (*big.Int, error) {
	var applied *big.Int
	err := n.withWrite("processQAPenalty", func() error {
		var opErr error
		applied, opErr = n.engine.ProcessQAPenalty(caller.Array(), user.Array(), requested)
		return opErr
	})
	return applied, err
}

// --- Vault administration ---

func (n *Node) VaultSetTreasury(caller, treasury crypto.Address) error {
	return n.withWrite("setTreasury", func() error {
		return n.engine.SetTreasury(caller.Array(), treasury.Array())
	})
}

func (n *Node) VaultSetQualityCaller(caller, quality crypto.Address) error {
	return n.withWrite("setQualityCaller", func() error {
		return n.engine.SetQualityCaller(caller.Array(), quality.Array())
	})
}

func (n *Node) VaultSetMaxStake(caller crypto.Address, maximum *big.Int) error {
	return n.withWrite("setMaxStake", func() error {
		return n.engine.SetMaxStake(caller.Array(), maximum)
	})
}

func (n *Node) VaultPause(caller crypto.Address) error {
	return n.withWrite("pause", func() error {
		return n.engine.Pause(caller.Array())
	})
}

func (n *Node) VaultUnpause(caller crypto.Address) error {
	return n.withWrite("unpause", func() error {
		return n.engine.Unpause(caller.Array())
	})
}

func (n *Node) VaultEmergencyWithdraw(caller, recipient crypto.Address) (*big.Int, error) {
	var swept *big.Int
	err := n.withWrite("emergencyWithdraw", func() error {
		var opErr error
		swept, opErr = n.engine.EmergencyWithdraw(caller.Array(), recipient.Array())
		return opErr
	})
	return swept, err
}

// --- Read-only views ---

func (n *Node) VaultPositionInfo(owner crypto.Address) (*vault.PositionInfo, error) {
	var info *vault.PositionInfo
	err := n.withRead("positionInfo", func() error {
		var opErr error
		info, opErr = n.engine.PositionInfo(owner.Array())
		return opErr
	})
	return info, err
}

func (n *Node) VaultTotalStaked() (*big.Int, error) {
	var total *big.Int
	err := n.withRead("totalStaked", func() error {
		var opErr error
		total, opErr = n.engine.TotalStaked()
		return opErr
	})
	return total, err
}

func (n *Node) VaultMaxStake() (*big.Int, error) {
	var maximum *big.Int
	err := n.withRead("maxStake", func() error {
		var opErr error
		maximum, opErr = n.engine.MaxStake()
		return opErr
	})
	return maximum, err
}

func (n *Node) VaultPaused() (bool, error) {
	var paused bool
	err := n.withRead("paused", func() error {
		var opErr error
		paused, opErr = n.engine.Paused()
		return opErr
	})
	return paused, err
}

func (n *Node) TokenBalanceOf(addr crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := n.withRead("balanceOf", func() error {
		var opErr error
		balance, opErr = n.token.BalanceOf(addr.Array())
		return opErr
	})
	return balance, err
}
