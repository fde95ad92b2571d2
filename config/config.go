package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakevault/crypto"
	"stakevault/native/vault"
)

// DurationPoint mirrors vault.DurationPoint in TOML-friendly form.
type DurationPoint struct {
	Seconds uint64 `toml:"Seconds"`
	Bps     uint64 `toml:"Bps"`
}

// AmountTier mirrors vault.AmountTier; Threshold is a decimal string so
// arbitrarily large balances survive the round trip.
type AmountTier struct {
	Threshold string `toml:"Threshold"`
	BonusBps  uint64 `toml:"BonusBps"`
}

// VaultSection carries the vault economics.
type VaultSection struct {
	MinStake             string          `toml:"MinStake"`
	MaxStake             string          `toml:"MaxStake"`
	PenaltyBps           uint64          `toml:"PenaltyBps"`
	MaxMultiplierBps     uint64          `toml:"MaxMultiplierBps"`
	CooldownSeconds      uint64          `toml:"CooldownSeconds"`
	EarlyCooldownSeconds uint64          `toml:"EarlyCooldownSeconds"`
	Durations            []DurationPoint `toml:"Durations"`
	Tiers                []AmountTier    `toml:"Tiers"`
}

// GenesisAlloc seeds a token balance at first boot.
type GenesisAlloc struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	RPCAddress      string         `toml:"RPCAddress"`
	MetricsAddress  string         `toml:"MetricsAddress"`
	DataDir         string         `toml:"DataDir"`
	Environment     string         `toml:"Environment"`
	VaultAddress    string         `toml:"VaultAddress"`
	TreasuryAddress string         `toml:"TreasuryAddress"`
	AdminAddress    string         `toml:"AdminAddress"`
	QualityAddress  string         `toml:"QualityAddress"`
	Vault           VaultSection   `toml:"Vault"`
	Genesis         []GenesisAlloc `toml:"Genesis"`
}

// Load reads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = "127.0.0.1:9310"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	defaults := vault.DefaultParams()
	if strings.TrimSpace(c.Vault.MinStake) == "" {
		c.Vault.MinStake = defaults.MinStake.String()
	}
	if strings.TrimSpace(c.Vault.MaxStake) == "" {
		c.Vault.MaxStake = defaults.MaxStake.String()
	}
	if c.Vault.PenaltyBps == 0 {
		c.Vault.PenaltyBps = defaults.PenaltyBps
	}
	if c.Vault.MaxMultiplierBps == 0 {
		c.Vault.MaxMultiplierBps = defaults.MaxMultiplierBps
	}
	if c.Vault.CooldownSeconds == 0 {
		c.Vault.CooldownSeconds = defaults.CooldownPeriod
	}
	if c.Vault.EarlyCooldownSeconds == 0 {
		c.Vault.EarlyCooldownSeconds = defaults.EarlyCooldownPeriod
	}
	if len(c.Vault.Durations) == 0 {
		for _, point := range defaults.DurationPoints {
			c.Vault.Durations = append(c.Vault.Durations, DurationPoint{Seconds: point.Duration, Bps: point.Bps})
		}
	}
	if len(c.Vault.Tiers) == 0 {
		for _, tier := range defaults.AmountTiers {
			c.Vault.Tiers = append(c.Vault.Tiers, AmountTier{Threshold: tier.Threshold.String(), BonusBps: tier.BonusBps})
		}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("config: %s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a valid decimal amount", field)
	}
	return amount, nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("config: %s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: %s: %w", field, err)
	}
	return addr, nil
}

// VaultParams converts the TOML section into validated engine params.
func (c *Config) VaultParams() (vault.Params, error) {
	params := vault.Params{
		MaxMultiplierBps:    c.Vault.MaxMultiplierBps,
		PenaltyBps:          c.Vault.PenaltyBps,
		CooldownPeriod:      c.Vault.CooldownSeconds,
		EarlyCooldownPeriod: c.Vault.EarlyCooldownSeconds,
	}
	var err error
	if params.MinStake, err = parseAmount("Vault.MinStake", c.Vault.MinStake); err != nil {
		return vault.Params{}, err
	}
	if params.MaxStake, err = parseAmount("Vault.MaxStake", c.Vault.MaxStake); err != nil {
		return vault.Params{}, err
	}
	for _, point := range c.Vault.Durations {
		params.DurationPoints = append(params.DurationPoints, vault.DurationPoint{
			Duration: point.Seconds,
			Bps:      point.Bps,
		})
	}
	for i, tier := range c.Vault.Tiers {
		threshold, err := parseAmount(fmt.Sprintf("Vault.Tiers[%d].Threshold", i), tier.Threshold)
		if err != nil {
			return vault.Params{}, err
		}
		params.AmountTiers = append(params.AmountTiers, vault.AmountTier{
			Threshold: threshold,
			BonusBps:  tier.BonusBps,
		})
	}
	if err := params.Validate(); err != nil {
		return vault.Params{}, err
	}
	return params, nil
}

// Addresses resolves the configured identities. Quality may be empty at boot
// and assigned later by the admin.
func (c *Config) Addresses() (vaultAddr, treasury, admin, quality crypto.Address, err error) {
	if vaultAddr, err = parseAddress("VaultAddress", c.VaultAddress); err != nil {
		return
	}
	if treasury, err = parseAddress("TreasuryAddress", c.TreasuryAddress); err != nil {
		return
	}
	if admin, err = parseAddress("AdminAddress", c.AdminAddress); err != nil {
		return
	}
	if strings.TrimSpace(c.QualityAddress) != "" {
		quality, err = parseAddress("QualityAddress", c.QualityAddress)
	}
	return
}

// ResolvedAlloc is a parsed genesis allocation.
type ResolvedAlloc struct {
	Address crypto.Address
	Balance *big.Int
}

// GenesisAllocs resolves the configured genesis balances.
func (c *Config) GenesisAllocs() ([]ResolvedAlloc, error) {
	out := make([]ResolvedAlloc, 0, len(c.Genesis))
	for i, alloc := range c.Genesis {
		addr, err := parseAddress(fmt.Sprintf("Genesis[%d].Address", i), alloc.Address)
		if err != nil {
			return nil, err
		}
		balance, err := parseAmount(fmt.Sprintf("Genesis[%d].Balance", i), alloc.Balance)
		if err != nil {
			return nil, err
		}
		if balance.Sign() <= 0 {
			return nil, fmt.Errorf("config: Genesis[%d].Balance must be positive", i)
		}
		out = append(out, ResolvedAlloc{Address: addr, Balance: balance})
	}
	return out, nil
}
