// Copyright (c) 2026 The OptiFreight developers
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig reports the first invalid setting in cfg, including an
// inconsistent protocol schedule.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.ProgramID != "" {
		if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProgramID, err)
		}
	}

	if cfg.Platform != "" {
		if _, err := solana.PublicKeyFromBase58(cfg.Platform); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPlatform, err)
		}
	}

	if cfg.MetricsAddr != "" {
		if err := validateAddr(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMetricsAddr, err)
		}
	}

	return cfg.Protocol.Validate()
}

func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
