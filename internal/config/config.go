// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"mev_engine/internal/core"
	"mev_engine/internal/ledger"
	"mev_engine/internal/state"
	"mev_engine/internal/venue/binance"
	"mev_engine/internal/venue/sim"

	"gopkg.in/yaml.v3"
)

const (
	DefaultProgramID      = "6d65765f656e67696e6500000000000000000000000000000000000000000000"
	DefaultTokenProgramID = "06ddf6e1d765a193d9cbe146ceeb79ac1cb485ed5f5b37913a8cf5857eff00a9"
)

// Config represents the complete configuration structure
type Config struct {
	App           AppConfig              `yaml:"app"`
	Engine        EngineConfig           `yaml:"engine"`
	Tokens        map[string]TokenConfig `yaml:"tokens"`
	TokenAccounts []TokenAccountConfig   `yaml:"token_accounts"`
	Venues        map[string]VenueConfig `yaml:"venues"`
	Binance       BinanceConfig          `yaml:"binance"`
	Scanner       ScannerConfig          `yaml:"scanner"`
	System        SystemConfig           `yaml:"system"`
	Telemetry     TelemetryConfig        `yaml:"telemetry"`
	Server        ServerConfig           `yaml:"server"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	ProgramID      string `yaml:"program_id"`
	TokenProgramID string `yaml:"token_program_id"`
	StoreDriver    string `yaml:"store_driver"` // memory or sqlite
	StorePath      string `yaml:"store_path"`
	EngineType     string `yaml:"engine_type"`  // simple or dbos
	DatabaseURL    string `yaml:"database_url"` // Required for DBOS
}

// EngineConfig tunes the processor
type EngineConfig struct {
	RebalanceSteps      uint32 `yaml:"rebalance_steps"`
	LamportsPerByteYear uint64 `yaml:"lamports_per_byte_year"`
	RentExemptionYears  uint64 `yaml:"rent_exemption_years"`
}

// TokenConfig names a mint. An empty mint is derived from the token name.
type TokenConfig struct {
	Mint     string `yaml:"mint"`
	Decimals int32  `yaml:"decimals"`
}

// TokenAccountConfig seeds a token account in the in-process token program
type TokenAccountConfig struct {
	Key    string `yaml:"key"`
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`
}

// VenueConfig describes one router. An empty router key is derived from the venue name.
type VenueConfig struct {
	Kind             string            `yaml:"kind"` // sim or remote
	Router           string            `yaml:"router"`
	BaseURL          string            `yaml:"base_url"`
	Quotes           string            `yaml:"quotes"` // "" or binance
	TimeoutMs        int               `yaml:"timeout_ms"`
	FailureThreshold uint              `yaml:"failure_threshold"`
	TradeEdgeBps     uint32            `yaml:"trade_edge_bps"`
	FlashFeeBps      uint32            `yaml:"flash_fee_bps"`
	Holdings         map[string]uint64 `yaml:"holdings"`
	Pools            []PoolConfig      `yaml:"pools"`
}

// PoolConfig seeds a simulated constant-product pool
type PoolConfig struct {
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	ReserveA uint64 `yaml:"reserve_a"`
	ReserveB uint64 `yaml:"reserve_b"`
	FeeBps   uint32 `yaml:"fee_bps"`
}

// BinanceConfig contains ticker access for quote overrides
type BinanceConfig struct {
	APIKey    Secret         `yaml:"api_key"`
	SecretKey Secret         `yaml:"secret_key"`
	BaseURL   string         `yaml:"base_url"`
	Markets   []MarketConfig `yaml:"markets"`
}

// MarketConfig maps a ticker onto two configured tokens
type MarketConfig struct {
	Symbol string `yaml:"symbol"`
	Base   string `yaml:"base"`
	Quote  string `yaml:"quote"`
}

// ScannerConfig drives the periodic route scan
type ScannerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	IntervalMs int           `yaml:"interval_ms"`
	PoolSize   int           `yaml:"pool_size"`
	Routes     []RouteConfig `yaml:"routes"`
}

// RouteConfig is a triangle of three tokens priced on one venue
type RouteConfig struct {
	Name   string   `yaml:"name"`
	Venue  string   `yaml:"venue"`
	Tokens []string `yaml:"tokens"`
	Amount uint64   `yaml:"amount"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// ServerConfig contains the listening surfaces
type ServerConfig struct {
	GRPCPort  int    `yaml:"grpc_port"`
	HTTPPort  int    `yaml:"http_port"` // health, metrics and the live feed
	APIKeys   Secret `yaml:"api_keys"`  // Comma-separated; empty disables auth
	RateLimit int    `yaml:"rate_limit"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// DefaultConfig returns a runnable single-venue setup backed by memory
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			ProgramID:      DefaultProgramID,
			TokenProgramID: DefaultTokenProgramID,
			StoreDriver:    "memory",
			EngineType:     "simple",
		},
		Engine: EngineConfig{
			RebalanceSteps:      5,
			LamportsPerByteYear: ledger.DefaultRent.LamportsPerByteYear,
			RentExemptionYears:  ledger.DefaultRent.ExemptionYears,
		},
		Tokens: map[string]TokenConfig{
			"SOL":  {Decimals: 9},
			"USDC": {Decimals: 6},
			"BONK": {Decimals: 5},
		},
		Venues: map[string]VenueConfig{
			"sim": {
				Kind:         "sim",
				TradeEdgeBps: 100,
				FlashFeeBps:  9,
				Holdings:     map[string]uint64{"SOL": 1_000_000, "USDC": 1_000_000, "BONK": 1_000_000},
				Pools: []PoolConfig{
					{TokenA: "SOL", TokenB: "USDC", ReserveA: 10_000_000, ReserveB: 10_000_000, FeeBps: 30},
					{TokenA: "USDC", TokenB: "BONK", ReserveA: 10_000_000, ReserveB: 10_000_000, FeeBps: 30},
					{TokenA: "BONK", TokenB: "SOL", ReserveA: 10_000_000, ReserveB: 10_000_000, FeeBps: 30},
				},
			},
		},
		Scanner: ScannerConfig{
			IntervalMs: 1000,
			PoolSize:   4,
		},
		System:    SystemConfig{LogLevel: "INFO"},
		Telemetry: TelemetryConfig{ServiceName: "mev_engine", EnableMetrics: true},
		Server: ServerConfig{
			GRPCPort:  50051,
			HTTPPort:  8080,
			RateLimit: 50,
		},
	}
}

// LoadConfig loads configuration from a YAML file with environment variable expansion.
// Scalars absent from the file keep their DefaultConfig values; the token and
// venue tables are replaced as a whole when the file names either.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML content
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	config.Tokens, config.Venues = nil, nil
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Tokens == nil && config.Venues == nil {
		defaults := DefaultConfig()
		config.Tokens, config.Venues = defaults.Tokens, defaults.Venues
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	for _, check := range []func() error{
		c.validateAppConfig,
		c.validateEngineConfig,
		c.validateTokens,
		c.validateTokenAccounts,
		c.validateVenues,
		c.validateBinanceConfig,
		c.validateScannerConfig,
		c.validateSystemConfig,
		c.validateServerConfig,
	} {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	if _, err := core.ParsePubkey(c.App.ProgramID); err != nil {
		return ValidationError{Field: "app.program_id", Value: c.App.ProgramID, Message: err.Error()}
	}
	if _, err := core.ParsePubkey(c.App.TokenProgramID); err != nil {
		return ValidationError{Field: "app.token_program_id", Value: c.App.TokenProgramID, Message: err.Error()}
	}

	switch c.App.StoreDriver {
	case "memory":
	case "sqlite":
		if c.App.StorePath == "" {
			return ValidationError{Field: "app.store_path", Message: "store path is required for sqlite"}
		}
	default:
		return ValidationError{Field: "app.store_driver", Value: c.App.StoreDriver, Message: "must be one of: memory, sqlite"}
	}

	switch c.App.EngineType {
	case "simple":
	case "dbos":
		if c.App.DatabaseURL == "" {
			return ValidationError{Field: "app.database_url", Message: "database url is required when engine_type is 'dbos'"}
		}
	default:
		return ValidationError{Field: "app.engine_type", Value: c.App.EngineType, Message: "must be one of: simple, dbos"}
	}
	return nil
}

func (c *Config) validateEngineConfig() error {
	if c.Engine.RebalanceSteps == 0 {
		return ValidationError{Field: "engine.rebalance_steps", Value: 0, Message: "must be positive"}
	}
	if c.Engine.RebalanceSteps > 64 {
		return ValidationError{Field: "engine.rebalance_steps", Value: c.Engine.RebalanceSteps, Message: "must be at most 64"}
	}
	return nil
}

func (c *Config) validateTokens() error {
	for name, tok := range c.Tokens {
		if tok.Mint != "" {
			if _, err := core.ParsePubkey(tok.Mint); err != nil {
				return ValidationError{Field: fmt.Sprintf("tokens.%s.mint", name), Value: tok.Mint, Message: err.Error()}
			}
		}
		if tok.Decimals < 0 || tok.Decimals > 18 {
			return ValidationError{Field: fmt.Sprintf("tokens.%s.decimals", name), Value: tok.Decimals, Message: "must be between 0 and 18"}
		}
	}
	return nil
}

func (c *Config) validateTokenAccounts() error {
	seen := make(map[string]bool, len(c.TokenAccounts))
	for i, ta := range c.TokenAccounts {
		if _, err := core.ParsePubkey(ta.Key); err != nil {
			return ValidationError{Field: fmt.Sprintf("token_accounts[%d].key", i), Value: ta.Key, Message: err.Error()}
		}
		if _, err := core.ParsePubkey(ta.Owner); err != nil {
			return ValidationError{Field: fmt.Sprintf("token_accounts[%d].owner", i), Value: ta.Owner, Message: err.Error()}
		}
		if seen[ta.Key] {
			return ValidationError{Field: fmt.Sprintf("token_accounts[%d].key", i), Value: ta.Key, Message: "duplicate account"}
		}
		seen[ta.Key] = true
	}
	return nil
}

func (c *Config) validateVenues() error {
	if len(c.Venues) == 0 {
		return ValidationError{Field: "venues", Message: "at least one venue must be configured"}
	}

	routers := make(map[core.Pubkey]string)
	for _, name := range c.VenueNames() {
		v := c.Venues[name]
		field := "venues." + name

		router, err := c.RouterKey(name)
		if err != nil {
			return ValidationError{Field: field + ".router", Value: v.Router, Message: err.Error()}
		}
		if other, dup := routers[router]; dup {
			return ValidationError{Field: field + ".router", Value: v.Router, Message: "router already used by venue " + other}
		}
		routers[router] = name

		switch v.Kind {
		case "sim":
			for token := range v.Holdings {
				if _, ok := c.Tokens[token]; !ok {
					return ValidationError{Field: field + ".holdings", Value: token, Message: "unknown token"}
				}
			}
			for i, p := range v.Pools {
				if _, ok := c.Tokens[p.TokenA]; !ok {
					return ValidationError{Field: fmt.Sprintf("%s.pools[%d].token_a", field, i), Value: p.TokenA, Message: "unknown token"}
				}
				if _, ok := c.Tokens[p.TokenB]; !ok {
					return ValidationError{Field: fmt.Sprintf("%s.pools[%d].token_b", field, i), Value: p.TokenB, Message: "unknown token"}
				}
				if p.FeeBps >= 10_000 {
					return ValidationError{Field: fmt.Sprintf("%s.pools[%d].fee_bps", field, i), Value: p.FeeBps, Message: "must be below 10000"}
				}
			}
		case "remote":
			if v.BaseURL == "" {
				return ValidationError{Field: field + ".base_url", Message: "base url is required for remote venues"}
			}
		default:
			return ValidationError{Field: field + ".kind", Value: v.Kind, Message: "must be one of: sim, remote"}
		}

		if v.Quotes != "" && v.Quotes != "binance" {
			return ValidationError{Field: field + ".quotes", Value: v.Quotes, Message: "must be empty or binance"}
		}
	}
	return nil
}

func (c *Config) validateBinanceConfig() error {
	for i, m := range c.Binance.Markets {
		if m.Symbol == "" {
			return ValidationError{Field: fmt.Sprintf("binance.markets[%d].symbol", i), Message: "symbol is required"}
		}
		for _, tok := range []string{m.Base, m.Quote} {
			if _, ok := c.Tokens[tok]; !ok {
				return ValidationError{Field: fmt.Sprintf("binance.markets[%d]", i), Value: tok, Message: "unknown token"}
			}
		}
	}
	return nil
}

func (c *Config) validateScannerConfig() error {
	if !c.Scanner.Enabled {
		return nil // Skip validation if disabled
	}
	if c.Scanner.IntervalMs <= 0 {
		return ValidationError{Field: "scanner.interval_ms", Value: c.Scanner.IntervalMs, Message: "must be positive"}
	}
	if len(c.Scanner.Routes) == 0 {
		return ValidationError{Field: "scanner.routes", Message: "at least one route required when the scanner is enabled"}
	}
	for i, r := range c.Scanner.Routes {
		if _, ok := c.Venues[r.Venue]; !ok {
			return ValidationError{Field: fmt.Sprintf("scanner.routes[%d].venue", i), Value: r.Venue, Message: "unknown venue"}
		}
		if len(r.Tokens) != 3 {
			return ValidationError{Field: fmt.Sprintf("scanner.routes[%d].tokens", i), Value: r.Tokens, Message: "exactly three tokens required"}
		}
		for _, tok := range r.Tokens {
			if _, ok := c.Tokens[tok]; !ok {
				return ValidationError{Field: fmt.Sprintf("scanner.routes[%d].tokens", i), Value: tok, Message: "unknown token"}
			}
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateServerConfig() error {
	for field, port := range map[string]int{"server.grpc_port": c.Server.GRPCPort, "server.http_port": c.Server.HTTPPort} {
		if port < 0 || port > 65535 {
			return ValidationError{Field: field, Value: port, Message: "must be between 0 and 65535"}
		}
	}
	if c.Server.RateLimit < 0 {
		return ValidationError{Field: "server.rate_limit", Value: c.Server.RateLimit, Message: "must not be negative"}
	}
	return nil
}

// ProgramKey is the identity owning every state slot
func (c *Config) ProgramKey() core.Pubkey {
	p, _ := core.ParsePubkey(c.App.ProgramID)
	return p
}

// TokenProgramKey is the only token program transfers may name
func (c *Config) TokenProgramKey() core.Pubkey {
	p, _ := core.ParsePubkey(c.App.TokenProgramID)
	return p
}

// Rent returns the exemption parameters for new slots
func (c *Config) Rent() ledger.Rent {
	return ledger.Rent{
		LamportsPerByteYear: c.Engine.LamportsPerByteYear,
		ExemptionYears:      c.Engine.RentExemptionYears,
	}
}

// TokenKey resolves a configured token name to its mint
func (c *Config) TokenKey(name string) (core.Pubkey, error) {
	tok, ok := c.Tokens[name]
	if !ok {
		return core.Pubkey{}, fmt.Errorf("unknown token %q", name)
	}
	if tok.Mint == "" {
		return state.DeriveAddress(core.SystemProgram, []byte("token"), []byte(name)), nil
	}
	return core.ParsePubkey(tok.Mint)
}

// RouterKey resolves the router account a venue answers to
func (c *Config) RouterKey(venue string) (core.Pubkey, error) {
	v, ok := c.Venues[venue]
	if !ok {
		return core.Pubkey{}, fmt.Errorf("unknown venue %q", venue)
	}
	if v.Router == "" {
		return state.DeriveAddress(c.ProgramKey(), []byte("router"), []byte(venue)), nil
	}
	return core.ParsePubkey(v.Router)
}

// VenueNames lists venues in a stable order
func (c *Config) VenueNames() []string {
	names := make([]string, 0, len(c.Venues))
	for name := range c.Venues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SimConfig converts a sim venue section into its runtime form
func (c *Config) SimConfig(venue string) (sim.Config, error) {
	v, ok := c.Venues[venue]
	if !ok {
		return sim.Config{}, fmt.Errorf("unknown venue %q", venue)
	}

	out := sim.Config{
		Holdings:     make(map[core.Pubkey]uint64, len(v.Holdings)),
		TradeEdgeBps: v.TradeEdgeBps,
		FlashFeeBps:  v.FlashFeeBps,
	}
	for name, amount := range v.Holdings {
		key, err := c.TokenKey(name)
		if err != nil {
			return sim.Config{}, err
		}
		out.Holdings[key] = amount
	}
	for _, p := range v.Pools {
		a, err := c.TokenKey(p.TokenA)
		if err != nil {
			return sim.Config{}, err
		}
		b, err := c.TokenKey(p.TokenB)
		if err != nil {
			return sim.Config{}, err
		}
		out.Pools = append(out.Pools, sim.PoolConfig{
			TokenA:   a,
			TokenB:   b,
			ReserveA: p.ReserveA,
			ReserveB: p.ReserveB,
			FeeBps:   p.FeeBps,
		})
	}
	return out, nil
}

// Markets converts the binance section into quoter markets
func (c *Config) Markets() ([]binance.Market, error) {
	out := make([]binance.Market, 0, len(c.Binance.Markets))
	for _, m := range c.Binance.Markets {
		base, err := c.TokenKey(m.Base)
		if err != nil {
			return nil, err
		}
		quote, err := c.TokenKey(m.Quote)
		if err != nil {
			return nil, err
		}
		out = append(out, binance.Market{
			Symbol:        m.Symbol,
			Base:          base,
			Quote:         quote,
			BaseDecimals:  c.Tokens[m.Base].Decimals,
			QuoteDecimals: c.Tokens[m.Quote].Decimals,
		})
	}
	return out, nil
}

// APIKeys splits the configured key list
func (c *Config) APIKeys() []string {
	return c.Server.APIKeys.List()
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
