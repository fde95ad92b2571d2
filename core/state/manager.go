package state

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stakevault/core/types"
	"stakevault/native/vault"
	"stakevault/storage"
)

// Manager reads and writes vault state on a key-value backend. Writes are
// staged in an overlay: callers bracket every operation with Begin and then
// either Commit (flush to the backend) or Revert (discard), giving each
// operation all-or-nothing semantics without backend transactions.
type Manager struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]bool
	staged  bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]bool),
	}
}

const (
	positionPrefix = "vault/position/"
	accountPrefix  = "account/"
	rolePrefix     = "role:"

	totalStakedKey        = "vault/totalStaked"
	totalCooldownKey      = "vault/totalCooldown"
	totalEarlyCooldownKey = "vault/totalEarlyCooldown"
	treasuryKey           = "vault/treasury"
	maxStakeKey           = "vault/maxStake"
	pausedKey             = "vault/paused"
	genesisKey            = "genesis/initialised"
)

func positionKey(owner [20]byte) string {
	return positionPrefix + hex.EncodeToString(owner[:])
}

func accountKey(addr []byte) string {
	return accountPrefix + hex.EncodeToString(addr)
}

func roleKey(role string) string {
	return rolePrefix + role
}

// Begin starts staging writes for a new operation. Nested operations reuse
// the open overlay.
func (m *Manager) Begin() {
	if m.staged {
		return
	}
	m.staged = true
	m.writes = make(map[string][]byte)
	m.deletes = make(map[string]bool)
}

// Commit flushes staged writes to the backend and closes the overlay.
func (m *Manager) Commit() error {
	for key := range m.deletes {
		if err := m.db.Delete([]byte(key)); err != nil {
			return fmt.Errorf("state: flush delete %q: %w", key, err)
		}
	}
	for key, value := range m.writes {
		if err := m.db.Put([]byte(key), value); err != nil {
			return fmt.Errorf("state: flush write %q: %w", key, err)
		}
	}
	m.staged = false
	m.writes = make(map[string][]byte)
	m.deletes = make(map[string]bool)
	return nil
}

// Revert discards all staged writes.
func (m *Manager) Revert() {
	m.staged = false
	m.writes = make(map[string][]byte)
	m.deletes = make(map[string]bool)
}

func (m *Manager) get(key string) ([]byte, bool, error) {
	if m.deletes[key] {
		return nil, false, nil
	}
	if value, ok := m.writes[key]; ok {
		return value, true, nil
	}
	value, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) put(key string, value []byte) error {
	if !m.staged {
		return m.db.Put([]byte(key), value)
	}
	delete(m.deletes, key)
	m.writes[key] = value
	return nil
}

func (m *Manager) delete(key string) error {
	if !m.staged {
		return m.db.Delete([]byte(key))
	}
	delete(m.writes, key)
	m.deletes[key] = true
	return nil
}

func (m *Manager) getJSON(key string, out interface{}) (bool, error) {
	raw, ok, err := m.get(key)
	if err != nil {
		return false, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.put(key, encoded)
}

func (m *Manager) getBigInt(key string) (*big.Int, error) {
	raw, ok, err := m.get(key)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return big.NewInt(0), nil
	}
	value, valid := new(big.Int).SetString(string(raw), 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt amount at %q", key)
	}
	return value, nil
}

func (m *Manager) putBigInt(key string, value *big.Int) error {
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("state: amount at %q must be non-negative", key)
	}
	return m.put(key, []byte(value.String()))
}

// --- Accounts (token balances) ---

// GetAccount loads an account record, returning a zero-balance account when
// none exists.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	account := &types.Account{}
	ok, err := m.getJSON(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.EnsureAccount(nil), nil
	}
	return types.EnsureAccount(account), nil
}

// PutAccount persists an account record.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	return m.putJSON(accountKey(addr), types.EnsureAccount(account))
}

// --- Positions ---

// VaultGetPosition loads a user's position record.
func (m *Manager) VaultGetPosition(owner [20]byte) (*vault.Position, bool, error) {
	position := &vault.Position{}
	ok, err := m.getJSON(positionKey(owner), position)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return vault.EnsurePosition(position), true, nil
}

// VaultPutPosition persists a user's position record.
func (m *Manager) VaultPutPosition(owner [20]byte, position *vault.Position) error {
	if position == nil {
		return fmt.Errorf("state: nil position")
	}
	return m.putJSON(positionKey(owner), position)
}

// VaultDeletePosition removes an emptied position record.
func (m *Manager) VaultDeletePosition(owner [20]byte) error {
	return m.delete(positionKey(owner))
}

// --- Aggregates ---

func (m *Manager) VaultTotalStaked() (*big.Int, error) {
	return m.getBigInt(totalStakedKey)
}

func (m *Manager) VaultSetTotalStaked(total *big.Int) error {
	return m.putBigInt(totalStakedKey, total)
}

func (m *Manager) VaultTotalCooldown() (*big.Int, error) {
	return m.getBigInt(totalCooldownKey)
}

func (m *Manager) VaultSetTotalCooldown(total *big.Int) error {
	return m.putBigInt(totalCooldownKey, total)
}

func (m *Manager) VaultTotalEarlyCooldown() (*big.Int, error) {
	return m.getBigInt(totalEarlyCooldownKey)
}

func (m *Manager) VaultSetTotalEarlyCooldown(total *big.Int) error {
	return m.putBigInt(totalEarlyCooldownKey, total)
}

// --- Administrative settings ---

func (m *Manager) VaultTreasury() ([20]byte, error) {
	var out [20]byte
	raw, ok, err := m.get(treasuryKey)
	if err != nil || !ok {
		return out, err
	}
	decoded, err := hex.DecodeString(string(raw))
	if err != nil || len(decoded) != len(out) {
		return out, fmt.Errorf("state: corrupt treasury entry")
	}
	copy(out[:], decoded)
	return out, nil
}

func (m *Manager) VaultSetTreasury(addr [20]byte) error {
	return m.put(treasuryKey, []byte(hex.EncodeToString(addr[:])))
}

// VaultMaxStake returns the stored per-user ceiling; ok is false when no
// override has been set and the configured default applies.
func (m *Manager) VaultMaxStake() (*big.Int, bool, error) {
	raw, ok, err := m.get(maxStakeKey)
	if err != nil || !ok {
		return nil, false, err
	}
	value, valid := new(big.Int).SetString(string(raw), 10)
	if !valid {
		return nil, false, fmt.Errorf("state: corrupt max stake entry")
	}
	return value, true, nil
}

func (m *Manager) VaultSetMaxStake(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: max stake must be positive")
	}
	return m.put(maxStakeKey, []byte(amount.String()))
}

// VaultPaused reports whether the mutation pause toggle is enabled.
func (m *Manager) VaultPaused() (bool, error) {
	var payload struct {
		Paused bool `json:"paused"`
	}
	ok, err := m.getJSON(pausedKey, &payload)
	if err != nil || !ok {
		return false, err
	}
	return payload.Paused, nil
}

func (m *Manager) VaultSetPaused(paused bool) error {
	return m.putJSON(pausedKey, struct {
		Paused bool `json:"paused"`
	}{Paused: paused})
}

// GenesisDone reports whether initial allocations and roles were applied.
func (m *Manager) GenesisDone() (bool, error) {
	_, ok, err := m.get(genesisKey)
	return ok, err
}

// SetGenesisDone marks genesis initialisation as complete.
func (m *Manager) SetGenesisDone() error {
	return m.put(genesisKey, []byte("1"))
}

// --- Roles ---

func (m *Manager) roleMembers(role string) ([]string, error) {
	var members []string
	if _, err := m.getJSON(roleKey(role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetRole adds an address to a role. Duplicate assignments are no-ops.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("state: role member must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	encoded := hex.EncodeToString(addr)
	for _, member := range members {
		if member == encoded {
			return nil
		}
	}
	return m.putJSON(roleKey(trimmed), append(members, encoded))
}

// ReplaceRole makes addr the sole member of the role.
func (m *Manager) ReplaceRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("state: role member must not be empty")
	}
	return m.putJSON(roleKey(trimmed), []string{hex.EncodeToString(addr)})
}

// HasRole reports whether addr holds the role. Lookup failures read as "no".
func (m *Manager) HasRole(role string, addr []byte) bool {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	encoded := hex.EncodeToString(addr)
	for _, member := range members {
		if member == encoded {
			return true
		}
	}
	return false
}

// RoleMembers lists the addresses holding a role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(members))
	for _, member := range members {
		decoded, err := hex.DecodeString(member)
		if err != nil {
			return nil, fmt.Errorf("state: corrupt role entry: %w", err)
		}
		out = append(out, decoded)
	}
	return out, nil
}
