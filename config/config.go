package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level pegpoold configuration.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`

	Pool      PoolConfig      `toml:"pool"`
	Oracle    OracleConfig    `toml:"oracle"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// PoolConfig carries the one-time pool parameters used when no persisted
// state exists yet.
type PoolConfig struct {
	Asset0          AssetConfig `toml:"asset0"`
	Asset1          AssetConfig `toml:"asset1"`
	Amplification   int64       `toml:"Amplification"`
	SwapFee         int64       `toml:"SwapFee"`  // 1e10 fraction
	AdminFee        int64       `toml:"AdminFee"` // 1e10 fraction of the swap fee
	Admin           string      `toml:"Admin"`    // bech32
	Manager         string      `toml:"Manager"`
	Pauser          string      `toml:"Pauser"`
	CustodyAccount  string      `toml:"CustodyAccount"`
	LPTokenSymbol   string      `toml:"LPTokenSymbol"`
	WrappedLPSymbol string      `toml:"WrappedLPSymbol"`
}

// AssetConfig declares one pool slot.
type AssetConfig struct {
	Symbol         string `toml:"Symbol"`
	RateMultiplier string `toml:"RateMultiplier"` // decimal, 1e18 scale
	Native         bool   `toml:"Native"`
	PriceThreshold string `toml:"PriceThreshold"` // decimal, 1e18 scale; empty disables
}

// OracleConfig selects the price source.
type OracleConfig struct {
	// Static price table, 1e8 scale per symbol, used when no feed is wired.
	Prices map[string]string `toml:"Prices"`
	// MaxAgeSeconds bounds staleness when the feed carries timestamps.
	MaxAgeSeconds int64 `toml:"MaxAgeSeconds"`
}

// TelemetryConfig carries the OTLP exporter knobs.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Load reads the configuration at path, creating a commented default when the
// file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants a running daemon depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.Pool.Asset0.Symbol) == "" || strings.TrimSpace(c.Pool.Asset1.Symbol) == "" {
		return fmt.Errorf("config: both pool asset symbols are required")
	}
	if strings.EqualFold(c.Pool.Asset0.Symbol, c.Pool.Asset1.Symbol) {
		return fmt.Errorf("config: pool assets must differ")
	}
	if c.Pool.Asset0.Native && c.Pool.Asset1.Native {
		return fmt.Errorf("config: at most one pool asset may be native")
	}
	if c.Pool.Amplification <= 0 {
		return fmt.Errorf("config: Amplification must be positive")
	}
	if c.Pool.SwapFee < 0 || c.Pool.AdminFee < 0 {
		return fmt.Errorf("config: fees must not be negative")
	}
	for _, field := range []struct{ name, value string }{
		{"Admin", c.Pool.Admin},
		{"Manager", c.Pool.Manager},
		{"Pauser", c.Pool.Pauser},
		{"CustodyAccount", c.Pool.CustodyAccount},
	} {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("config: pool %s address is required", field.name)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9464"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./pegpool-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.Pool.LPTokenSymbol) == "" {
		cfg.Pool.LPTokenSymbol = "PLP"
	}
	if strings.TrimSpace(cfg.Pool.WrappedLPSymbol) == "" {
		cfg.Pool.WrappedLPSymbol = "WPLP"
	}
	if cfg.Oracle.MaxAgeSeconds <= 0 {
		cfg.Oracle.MaxAgeSeconds = 300
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: "127.0.0.1:8645",
		Pool: PoolConfig{
			Asset0: AssetConfig{
				Symbol:         "PEG",
				RateMultiplier: "1000000000000000000",
				Native:         true,
				PriceThreshold: "30000000000000000",
			},
			Asset1: AssetConfig{
				Symbol:         "SPEG",
				RateMultiplier: "1000000000000000000",
				PriceThreshold: "30000000000000000",
			},
			Amplification: 1000,
			SwapFee:       1_000_000,
			AdminFee:      5_000_000_000,
		},
		Oracle: OracleConfig{Prices: map[string]string{}},
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
