// Copyright (c) 2026 The OptiFreight developers
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

// Package config loads the engine configuration from a YAML file and
// OPTIFREIGHT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// EnvPrefix prefixes environment overrides, e.g. OPTIFREIGHT_LOG_LEVEL or
// OPTIFREIGHT_PROTOCOL_MINIMUM_PRICE.
const EnvPrefix = "OPTIFREIGHT"

// Config holds the engine settings.
type Config struct {
	DataDir     string          `mapstructure:"data_dir"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFile     string          `mapstructure:"log_file"`     // empty logs to stderr
	ProgramID   string          `mapstructure:"program_id"`   // base58; empty uses the built-in id
	Platform    string          `mapstructure:"platform"`     // base58 fee account
	MetricsAddr string          `mapstructure:"metrics_addr"` // empty disables the metrics endpoint
	Protocol    protocol.Params `mapstructure:"protocol"`
}

// DefaultDataDir returns ~/.optifreight, or .optifreight if the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".optifreight"
	}
	return filepath.Join(home, ".optifreight")
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		DataDir:     DefaultDataDir(),
		LogLevel:    "info",
		MetricsAddr: ":9464",
		Protocol:    protocol.DefaultParams(),
	}
}

// ProgramKey returns the program id, or the built-in id when unset.
func (c Config) ProgramKey() (solana.PublicKey, error) {
	if c.ProgramID == "" {
		return derive.DefaultProgramID, nil
	}
	pk, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidProgramID, err)
	}
	return pk, nil
}

// PlatformKey returns the fee account. An unset platform is the zero key.
func (c Config) PlatformKey() (solana.PublicKey, error) {
	if c.Platform == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(c.Platform)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidPlatform, err)
	}
	return pk, nil
}

func newViper(defaults Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setAll(v.SetDefault, defaults)
	return v
}

// setAll passes every configuration key and its value in cfg to set.
func setAll(set func(string, any), cfg Config) {
	set("data_dir", cfg.DataDir)
	set("log_level", cfg.LogLevel)
	set("log_file", cfg.LogFile)
	set("program_id", cfg.ProgramID)
	set("platform", cfg.Platform)
	set("metrics_addr", cfg.MetricsAddr)

	p := cfg.Protocol
	set("protocol.token_price", p.TokenPrice)
	set("protocol.tokens_per_trailer", p.TokensPerTrailer)
	set("protocol.primary_fee_bps", p.PrimaryFeeBps)
	set("protocol.secondary_fee_bps", p.SecondaryFeeBps)
	set("protocol.early_sale_penalty", p.EarlySalePenalty)
	set("protocol.minimum_price", p.MinimumPrice)
	set("protocol.term_years", p.TermYears)
	set("protocol.distribution_day", p.DistributionDay)
	set("protocol.distribution_cycle_days", p.DistributionCycleDays)
	set("protocol.total_supply_units", p.TotalSupplyUnits)
}

// LoadConfig reads the YAML file at path over DefaultConfig and applies
// environment overrides. Keys missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
	}

	v := newViper(DefaultConfig())
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}
	return decode(v)
}

// LoadEnv returns DefaultConfig with environment overrides applied. It is
// used when no configuration file exists yet.
func LoadEnv() (Config, error) {
	return decode(newViper(DefaultConfig()))
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigPermissions(0600)
	setAll(v.Set, cfg)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
