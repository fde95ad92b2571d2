package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"stakevault/crypto"
	"stakevault/native/vault"
)

type stakeParams struct {
	Caller          string `json:"caller"`
	Amount          string `json:"amount"`
	DurationSeconds uint64 `json:"durationSeconds"`
}

type amountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type lockupParams struct {
	Caller        string `json:"caller"`
	LockupSeconds uint64 `json:"lockupSeconds"`
}

type increaseStakeParams struct {
	Caller        string `json:"caller"`
	Amount        string `json:"amount"`
	LockupSeconds uint64 `json:"lockupSeconds"`
}

type penaltyParams struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type addressParams struct {
	Address string `json:"address"`
}

type adminTargetParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type positionResult struct {
	Active                bool   `json:"active"`
	Amount                string `json:"amount"`
	Unlocked              string `json:"unlocked"`
	Locked                string `json:"locked"`
	CooldownAmount        string `json:"cooldownAmount"`
	EarlyCooldownAmount   string `json:"earlyCooldownAmount"`
	Withdrawable          string `json:"withdrawable"`
	EffectiveMultiplier   uint64 `json:"effectiveMultiplier"`
	EffectiveLockupPeriod uint64 `json:"effectiveLockupPeriod"`
	WeightedStartTime     uint64 `json:"weightedStartTime"`
	UnlockIn              uint64 `json:"unlockIn"`
	CooldownIn            uint64 `json:"cooldownIn"`
	EarlyCooldownIn       uint64 `json:"earlyCooldownIn"`
	LastUpdateTime        uint64 `json:"lastUpdateTime"`
	ComputedAt            uint64 `json:"computedAt"`
}

type positionRecordResult struct {
	Amount                string `json:"amount"`
	WeightedStartTime     uint64 `json:"weightedStartTime"`
	EffectiveLockupPeriod uint64 `json:"effectiveLockupPeriod"`
	EffectiveMultiplier   uint64 `json:"effectiveMultiplier"`
	CooldownStart         uint64 `json:"cooldownStart"`
	CooldownAmount        string `json:"cooldownAmount"`
	EarlyCooldownStart    uint64 `json:"earlyCooldownStart"`
	EarlyCooldownAmount   string `json:"earlyCooldownAmount"`
	LastUpdateTime        uint64 `json:"lastUpdateTime"`
}

func amountOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func positionRecord(p *vault.Position) positionRecordResult {
	return positionRecordResult{
		Amount:                amountOrZero(p.Amount),
		WeightedStartTime:     p.WeightedStartTime,
		EffectiveLockupPeriod: p.EffectiveLockupPeriod,
		EffectiveMultiplier:   p.EffectiveMultiplier,
		CooldownStart:         p.CooldownStart,
		CooldownAmount:        amountOrZero(p.CooldownAmount),
		EarlyCooldownStart:    p.EarlyUnstakeCooldownStart,
		EarlyCooldownAmount:   amountOrZero(p.EarlyUnstakeCooldownAmount),
		LastUpdateTime:        p.LastUpdateTime,
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseRPCAddress(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func parseRPCAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func (s *Server) handleVaultStake(w http.ResponseWriter, req *RPCRequest) {
	var params stakeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseRPCAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, err := s.node.VaultStake(caller, amount, params.DurationSeconds)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionRecord(position))
}

func (s *Server) handleVaultIncreaseAmount(w http.ResponseWriter, req *RPCRequest) {
	var params amountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseRPCAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, err := s.node.VaultIncreaseAmount(caller, amount)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionRecord(position))
}

func (s *Server) handleVaultIncreaseLockup(w http.ResponseWriter, req *RPCRequest) {
	var params lockupParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, err := s.node.VaultIncreaseLockup(caller, params.LockupSeconds)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionRecord(position))
}

func (s *Server) handleVaultIncreaseStake(w http.ResponseWriter, req *RPCRequest) {
	var params increaseStakeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseRPCAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, err := s.node.VaultIncreaseStake(caller, amount, params.LockupSeconds)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionRecord(position))
}

func (s *Server) handleUnstakeLike(
	w http.ResponseWriter,
	req *RPCRequest,
	op func(crypto.Address, *big.Int) (*vault.Position, error),
) {
	var params amountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseRPCAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, err := op(caller, amount)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionRecord(position))
}

func (s *Server) handleVaultInitiateUnstake(w http.ResponseWriter, req *RPCRequest) {
	s.handleUnstakeLike(w, req, s.node.VaultInitiateUnstake)
}

func (s *Server) handleVaultUnstake(w http.ResponseWriter, req *RPCRequest) {
	s.handleUnstakeLike(w, req, s.node.VaultUnstake)
}

func (s *Server) handleVaultInitiateEarlyUnstake(w http.ResponseWriter, req *RPCRequest) {
	s.handleUnstakeLike(w, req, s.node.VaultInitiateEarlyUnstake)
}

func (s *Server) handleVaultEarlyUnstake(w http.ResponseWriter, req *RPCRequest) {
	s.handleUnstakeLike(w, req, s.node.VaultEarlyUnstake)
}

func (s *Server) handleVaultProcessPenalty(w http.ResponseWriter, req *RPCRequest) {
	var params penaltyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseRPCAddress("owner", params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseRPCAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	applied, err := s.node.VaultProcessQAPenalty(caller, owner, amount)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"requested": amount.String(),
		"applied":   applied.String(),
	})
}

func (s *Server) handleVaultSetTreasury(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminTarget(w, req, s.node.VaultSetTreasury)
}

func (s *Server) handleVaultSetQualityCaller(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminTarget(w, req, s.node.VaultSetQualityCaller)
}

func (s *Server) handleAdminTarget(
	w http.ResponseWriter,
	req *RPCRequest,
	op func(crypto.Address, crypto.Address) error,
) {
	var params adminTargetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	target, err := parseRPCAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := op(caller, target); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultSetMaxStake(w http.ResponseWriter, req *RPCRequest) {
	var params amountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseRPCAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.VaultSetMaxStake(caller, amount); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultPause(w http.ResponseWriter, req *RPCRequest) {
	s.handlePauseToggle(w, req, s.node.VaultPause)
}

func (s *Server) handleVaultUnpause(w http.ResponseWriter, req *RPCRequest) {
	s.handlePauseToggle(w, req, s.node.VaultUnpause)
}

func (s *Server) handlePauseToggle(w http.ResponseWriter, req *RPCRequest, op func(crypto.Address) error) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := op(caller); err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleVaultEmergencyWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params adminTargetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseRPCAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseRPCAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	swept, err := s.node.VaultEmergencyWithdraw(caller, recipient)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"swept": swept.String()})
}

func (s *Server) handleVaultPosition(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseRPCAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	info, err := s.node.VaultPositionInfo(owner)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{
		Active:                info.Active,
		Amount:                amountOrZero(info.Amount),
		Unlocked:              amountOrZero(info.Unlocked),
		Locked:                amountOrZero(info.Locked),
		CooldownAmount:        amountOrZero(info.CooldownAmount),
		EarlyCooldownAmount:   amountOrZero(info.EarlyCooldownAmount),
		Withdrawable:          amountOrZero(info.Withdrawable),
		EffectiveMultiplier:   info.EffectiveMultiplier,
		EffectiveLockupPeriod: info.EffectiveLockupPeriod,
		WeightedStartTime:     info.WeightedStartTime,
		UnlockIn:              info.UnlockIn,
		CooldownIn:            info.CooldownIn,
		EarlyCooldownIn:       info.EarlyCooldownIn,
		LastUpdateTime:        info.LastUpdateTime,
		ComputedAt:            info.ComputedAt,
	})
}

func (s *Server) handleVaultTotalStaked(w http.ResponseWriter, req *RPCRequest) {
	total, err := s.node.VaultTotalStaked()
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"totalStaked": total.String()})
}

func (s *Server) handleVaultMaxStake(w http.ResponseWriter, req *RPCRequest) {
	maximum, err := s.node.VaultMaxStake()
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"maxStake": maximum.String()})
}

func (s *Server) handleVaultPaused(w http.ResponseWriter, req *RPCRequest) {
	paused, err := s.node.VaultPaused()
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": paused})
}

func (s *Server) handleVaultEvents(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, s.node.RecentEvents())
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseRPCAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.node.TokenBalanceOf(addr)
	if err != nil {
		writeVaultError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
}
