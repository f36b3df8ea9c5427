package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rentmarket/core/types"
	"rentmarket/native/market"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	Env         string `toml:"Env"`
	LogFile     string `toml:"LogFile"`

	FeeRate         uint64 `toml:"FeeRate"`
	FeeRecipient    string `toml:"FeeRecipient"`
	AdminAddress    string `toml:"AdminAddress"`
	OperatorAddress string `toml:"OperatorAddress"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "rentmarket-local"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./rentmarket-data"
	}

	return cfg, nil
}

// Validate checks the identity and fee fields the engine cannot start
// without.
func (c *Config) Validate() error {
	if _, err := c.FeeConfig(); err != nil {
		return err
	}
	if _, err := c.Admin(); err != nil {
		return err
	}
	if _, err := c.Operator(); err != nil {
		return err
	}
	return nil
}

// FeeConfig parses the marketplace fee configuration.
func (c *Config) FeeConfig() (market.FeeConfig, error) {
	recipient, err := types.ParseAddress(c.FeeRecipient)
	if err != nil {
		return market.FeeConfig{}, fmt.Errorf("config: fee recipient: %w", err)
	}
	fees := market.FeeConfig{Rate: c.FeeRate, Recipient: recipient}
	if err := fees.Validate(); err != nil {
		return market.FeeConfig{}, err
	}
	return fees, nil
}

// Admin parses the administrative identity allowed to force-reclaim assets.
func (c *Config) Admin() ([20]byte, error) {
	admin, err := types.ParseAddress(c.AdminAddress)
	if err != nil {
		return [20]byte{}, fmt.Errorf("config: admin address: %w", err)
	}
	if types.IsZeroAddress(admin) {
		return [20]byte{}, fmt.Errorf("config: admin address must not be zero")
	}
	return admin, nil
}

// Operator parses the marketplace's own custody operator identity.
func (c *Config) Operator() ([20]byte, error) {
	operator, err := types.ParseAddress(c.OperatorAddress)
	if err != nil {
		return [20]byte{}, fmt.Errorf("config: operator address: %w", err)
	}
	if types.IsZeroAddress(operator) {
		return [20]byte{}, fmt.Errorf("config: operator address must not be zero")
	}
	return operator, nil
}

// createDefault creates and saves a default configuration file. The identity
// fields are intentionally left empty; Validate refuses to start the engine
// until an operator fills them in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8545",
		DataDir:     "./rentmarket-data",
		NetworkName: "rentmarket-local",
		FeeRate:     10,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
