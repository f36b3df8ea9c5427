package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testAddrHex = "0x00000000000000000000000000000000000000fe"

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8545" {
		t.Fatalf("rpc address = %q", cfg.RPCAddress)
	}
	if cfg.NetworkName != "rentmarket-local" {
		t.Fatalf("network name = %q", cfg.NetworkName)
	}
	if cfg.FeeRate != 10 {
		t.Fatalf("fee rate = %d", cfg.FeeRate)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	// The default carries no identities, so it cannot validate as-is.
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config must not validate")
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = ":9000"
DataDir = "/tmp/rentmarket-test"
NetworkName = "rentmarket-test"
FeeRate = 10
FeeRecipient = "` + testAddrHex + `"
AdminAddress = "0x00000000000000000000000000000000000000ad"
OperatorAddress = "0x000000000000000000000000000000000000000f"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" {
		t.Fatalf("rpc address = %q", cfg.RPCAddress)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	fees, err := cfg.FeeConfig()
	if err != nil {
		t.Fatalf("fee config: %v", err)
	}
	if fees.Rate != 10 {
		t.Fatalf("fee rate = %d", fees.Rate)
	}
	if fees.Recipient[19] != 0xFE {
		t.Fatalf("fee recipient = %x", fees.Recipient)
	}
	admin, err := cfg.Admin()
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if admin[19] != 0xAD {
		t.Fatalf("admin = %x", admin)
	}
}

func TestLoadFillsMissingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `FeeRate = 10
FeeRecipient = "` + testAddrHex + `"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8545" || cfg.DataDir != "./rentmarket-data" || cfg.NetworkName != "rentmarket-local" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidateRejectsBadIdentities(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing fee recipient", Config{FeeRate: 10, AdminAddress: testAddrHex, OperatorAddress: testAddrHex}},
		{"fee rate out of range", Config{FeeRate: 201, FeeRecipient: testAddrHex, AdminAddress: testAddrHex, OperatorAddress: testAddrHex}},
		{"malformed admin", Config{FeeRate: 10, FeeRecipient: testAddrHex, AdminAddress: "not-an-address", OperatorAddress: testAddrHex}},
		{"zero operator", Config{FeeRate: 10, FeeRecipient: testAddrHex, AdminAddress: testAddrHex, OperatorAddress: "0x0000000000000000000000000000000000000000"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
