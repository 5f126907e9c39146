package config

import (
	"os"
	"path/filepath"
	"testing"

	"mev_engine/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "api_key: ${TEST_API_KEY}",
			envVars: map[string]string{
				"TEST_API_KEY": "test_key_123",
			},
			expected: "api_key: test_key_123",
		},
		{
			name:     "missing env var returns empty string",
			input:    "api_key: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "api_key: ",
		},
		{
			name:  "mixed static and env vars",
			input: "static_value: 123\napi_key: ${TEST_KEY}",
			envVars: map[string]string{
				"TEST_KEY": "dynamic_key",
			},
			expected: "static_value: 123\napi_key: dynamic_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	sc, err := cfg.SimConfig("sim")
	require.NoError(t, err)
	assert.Len(t, sc.Pools, 3)
	assert.Len(t, sc.Holdings, 3)
	assert.Equal(t, uint32(100), sc.TradeEdgeBps)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_BINANCE_KEY", "bkey")
	content := `
app:
  store_driver: sqlite
  store_path: /tmp/mev.db
engine:
  rebalance_steps: 8
tokens:
  SOL:
    decimals: 9
  USDC:
    mint: "1111111111111111111111111111111111111111111111111111111111111111"
    decimals: 6
venues:
  edge:
    kind: remote
    base_url: http://venue:9000
    quotes: binance
binance:
  api_key: ${TEST_BINANCE_KEY}
  markets:
    - symbol: SOLUSDC
      base: SOL
      quote: USDC
server:
  api_keys: "a, b ,,c"
system:
  log_level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.App.StoreDriver)
	assert.Equal(t, uint32(8), cfg.Engine.RebalanceSteps)
	assert.Equal(t, 50051, cfg.Server.GRPCPort, "unset scalars keep defaults")
	assert.Len(t, cfg.Venues, 1, "venue table replaces the defaults")
	assert.Equal(t, "bkey", cfg.Binance.APIKey.Reveal())
	assert.Equal(t, []string{"a", "b", "c"}, cfg.APIKeys())

	usdc, err := cfg.TokenKey("USDC")
	require.NoError(t, err)
	assert.Equal(t, byte(0x11), usdc[0])

	markets, err := cfg.Markets()
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, usdc, markets[0].Quote)
	assert.Equal(t, int32(9), markets[0].BaseDecimals)

	assert.NotContains(t, cfg.String(), "bkey")
}

func TestParse_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Venues, cfg.Venues)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad program id", func(c *Config) { c.App.ProgramID = "xyz" }, "app.program_id"},
		{"sqlite without path", func(c *Config) { c.App.StoreDriver = "sqlite" }, "app.store_path"},
		{"unknown driver", func(c *Config) { c.App.StoreDriver = "redis" }, "app.store_driver"},
		{"dbos without url", func(c *Config) { c.App.EngineType = "dbos" }, "app.database_url"},
		{"zero steps", func(c *Config) { c.Engine.RebalanceSteps = 0 }, "engine.rebalance_steps"},
		{"no venues", func(c *Config) { c.Venues = nil }, "venues"},
		{"unknown pool token", func(c *Config) {
			v := c.Venues["sim"]
			v.Pools = []PoolConfig{{TokenA: "SOL", TokenB: "DOGE"}}
			c.Venues["sim"] = v
		}, "venues.sim.pools[0].token_b"},
		{"remote without url", func(c *Config) { c.Venues["r"] = VenueConfig{Kind: "remote"} }, "venues.r.base_url"},
		{"bad quotes", func(c *Config) {
			v := c.Venues["sim"]
			v.Quotes = "kraken"
			c.Venues["sim"] = v
		}, "venues.sim.quotes"},
		{"scanner without routes", func(c *Config) { c.Scanner.Enabled = true }, "scanner.routes"},
		{"bad route", func(c *Config) {
			c.Scanner.Enabled = true
			c.Scanner.Routes = []RouteConfig{{Venue: "sim", Tokens: []string{"SOL", "USDC"}}}
		}, "scanner.routes[0].tokens"},
		{"bad token account", func(c *Config) {
			c.TokenAccounts = []TokenAccountConfig{{Key: "zz", Owner: DefaultProgramID}}
		}, "token_accounts[0].key"},
		{"duplicate token account", func(c *Config) {
			c.TokenAccounts = []TokenAccountConfig{
				{Key: DefaultProgramID, Owner: DefaultProgramID},
				{Key: DefaultProgramID, Owner: DefaultProgramID},
			}
		}, "token_accounts[1].key"},
		{"bad log level", func(c *Config) { c.System.LogLevel = "LOUD" }, "system.log_level"},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 70000 }, "server.http_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "'"+tt.field+"'")
		})
	}
}

func TestValidate_DuplicateRouter(t *testing.T) {
	cfg := DefaultConfig()
	router := core.Pubkey{0x42}.String()
	cfg.Venues["a"] = VenueConfig{Kind: "remote", BaseURL: "http://a", Router: router}
	cfg.Venues["b"] = VenueConfig{Kind: "remote", BaseURL: "http://b", Router: router}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "router already used by venue a")
}

func TestKeys_DerivedAreStable(t *testing.T) {
	cfg := DefaultConfig()

	r1, err := cfg.RouterKey("sim")
	require.NoError(t, err)
	r2, err := cfg.RouterKey("sim")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.False(t, r1.IsZero())

	sol, err := cfg.TokenKey("SOL")
	require.NoError(t, err)
	usdc, err := cfg.TokenKey("USDC")
	require.NoError(t, err)
	assert.NotEqual(t, sol, usdc)

	_, err = cfg.TokenKey("DOGE")
	assert.Error(t, err)
	_, err = cfg.RouterKey("nowhere")
	assert.Error(t, err)
}
