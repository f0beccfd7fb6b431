package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		RPCAddress: "127.0.0.1:8645",
		Pool: PoolConfig{
			Asset0:         AssetConfig{Symbol: "PEG", RateMultiplier: "1000000000000000000", Native: true},
			Asset1:         AssetConfig{Symbol: "SPEG", RateMultiplier: "1000000000000000000"},
			Amplification:  1000,
			SwapFee:        1_000_000,
			AdminFee:       5_000_000_000,
			Admin:          "peg1qyqszqgpqyqszqgpqyqszqgpqyqszqgp2n5dkl",
			Manager:        "peg1qyqszqgpqyqszqgpqyqszqgpqyqszqgp2n5dkl",
			Pauser:         "peg1qyqszqgpqyqszqgpqyqszqgpqyqszqgp2n5dkl",
			CustodyAccount: "peg1qyqszqgpqyqszqgpqyqszqgpqyqszqgp2n5dkl",
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not created: %v", err)
	}
	if cfg.RPCAddress == "" || cfg.DataDir == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Pool.Asset0.Symbol != "PEG" || cfg.Pool.Asset1.Symbol != "SPEG" {
		t.Fatalf("default assets mismatch: %+v", cfg.Pool)
	}
	if cfg.Pool.LPTokenSymbol != "PLP" || cfg.Pool.WrappedLPSymbol != "WPLP" {
		t.Fatalf("default token symbols mismatch: %+v", cfg.Pool)
	}
	if cfg.Oracle.MaxAgeSeconds != 300 {
		t.Fatalf("oracle staleness default mismatch: %d", cfg.Oracle.MaxAgeSeconds)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	written := validConfig()
	written.Oracle.Prices = map[string]string{"PEG": "100000000", "SPEG": "102000000"}
	if err := persist(path, written); err != nil {
		t.Fatalf("persist: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Pool.Admin != written.Pool.Admin {
		t.Fatalf("admin mismatch: %s", loaded.Pool.Admin)
	}
	if loaded.Oracle.Prices["SPEG"] != "102000000" {
		t.Fatalf("oracle prices mismatch: %+v", loaded.Oracle.Prices)
	}
}

func TestLoadRejectsIncompleteFile(t *testing.T) {
	// The generated default has no operator addresses, so a daemon cannot
	// boot from it unedited.
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load (create): %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "address is required") {
		t.Fatalf("expected address validation failure, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing rpc address", func(c *Config) { c.RPCAddress = " " }, "RPCAddress"},
		{"missing symbol", func(c *Config) { c.Pool.Asset1.Symbol = "" }, "symbols"},
		{"duplicate symbols", func(c *Config) { c.Pool.Asset1.Symbol = "peg" }, "must differ"},
		{"two native slots", func(c *Config) { c.Pool.Asset1.Native = true }, "at most one"},
		{"non-positive amp", func(c *Config) { c.Pool.Amplification = 0 }, "Amplification"},
		{"negative fee", func(c *Config) { c.Pool.SwapFee = -1 }, "fees"},
		{"missing manager", func(c *Config) { c.Pool.Manager = "" }, "Manager"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
