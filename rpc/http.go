package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"stakevault/core"
	"stakevault/native/vault"
	"stakevault/token"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// Mutating calls per source, sustained and burst.
	mutationsPerMinute = 30
	mutationBurst      = 10
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codePaused         = -32010
	codeRateLimited    = -32020
)

// AuthTokenEnv names the environment variable holding the bearer token
// required for mutating calls. Mutations are rejected outright when unset.
const AuthTokenEnv = "STAKEVAULT_RPC_TOKEN"

// Server exposes the vault over JSON-RPC 2.0.
type Server struct {
	node      *core.Node
	authToken string

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewServer wires a server around the node, reading the mutation auth token
// from the environment.
func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv(AuthTokenEnv)),
		visitors:  make(map[string]*rate.Limiter),
	}
}

// Start blocks serving the RPC endpoint on addr.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status, id, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) limiter(source string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(mutationsPerMinute)/60, mutationBurst)
		s.visitors[source] = limiter
	}
	return limiter
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, 0, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "unable to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, 0, codeInvalidRequest, "request body too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}
	s.dispatch(w, r, &req)
}

// mutatingMethods require bearer auth and count against the rate limit.
var mutatingMethods = map[string]bool{
	"vault_stake":                true,
	"vault_increaseAmount":       true,
	"vault_increaseLockup":       true,
	"vault_increaseStake":        true,
	"vault_initiateUnstake":      true,
	"vault_unstake":              true,
	"vault_initiateEarlyUnstake": true,
	"vault_earlyUnstake":         true,
	"vault_processPenalty":       true,
	"vault_setTreasury":          true,
	"vault_setQualityCaller":     true,
	"vault_setMaxStake":          true,
	"vault_pause":                true,
	"vault_unpause":              true,
	"vault_emergencyWithdraw":    true,
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if mutatingMethods[req.Method] {
		if !s.limiter(sourceIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	switch req.Method {
	case "vault_stake":
		s.handleVaultStake(w, req)
	case "vault_increaseAmount":
		s.handleVaultIncreaseAmount(w, req)
	case "vault_increaseLockup":
		s.handleVaultIncreaseLockup(w, req)
	case "vault_increaseStake":
		s.handleVaultIncreaseStake(w, req)
	case "vault_initiateUnstake":
		s.handleVaultInitiateUnstake(w, req)
	case "vault_unstake":
		s.handleVaultUnstake(w, req)
	case "vault_initiateEarlyUnstake":
		s.handleVaultInitiateEarlyUnstake(w, req)
	case "vault_earlyUnstake":
		s.handleVaultEarlyUnstake(w, req)
	case "vault_processPenalty":
		s.handleVaultProcessPenalty(w, req)
	case "vault_setTreasury":
		s.handleVaultSetTreasury(w, req)
	case "vault_setQualityCaller":
		s.handleVaultSetQualityCaller(w, req)
	case "vault_setMaxStake":
		s.handleVaultSetMaxStake(w, req)
	case "vault_pause":
		s.handleVaultPause(w, req)
	case "vault_unpause":
		s.handleVaultUnpause(w, req)
	case "vault_emergencyWithdraw":
		s.handleVaultEmergencyWithdraw(w, req)
	case "vault_position":
		s.handleVaultPosition(w, req)
	case "vault_totalStaked":
		s.handleVaultTotalStaked(w, req)
	case "vault_maxStake":
		s.handleVaultMaxStake(w, req)
	case "vault_paused":
		s.handleVaultPaused(w, req)
	case "vault_events":
		s.handleVaultEvents(w, req)
	case "token_balanceOf":
		s.handleTokenBalanceOf(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// writeVaultError maps engine failures onto JSON-RPC codes, keeping the
// taxonomy distinguishable for clients.
func writeVaultError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, vault.ErrPaused):
		writeError(w, http.StatusConflict, id, codePaused, err.Error(), nil)
	case errors.Is(err, vault.ErrZeroAddress),
		errors.Is(err, vault.ErrZeroAmount),
		errors.Is(err, vault.ErrZeroDuration),
		errors.Is(err, vault.ErrUnsupportedDuration),
		errors.Is(err, vault.ErrAmountOutOfRange),
		errors.Is(err, vault.ErrArithmetic):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, token.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusConflict, id, codeServerError, err.Error(), nil)
	}
}
