// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/gravity"
)

const (
	defaultLogLevel             = "info"
	defaultThresholdNumerator   = 6666
	defaultThresholdDenominator = 10000
	defaultPowerScale           = 10000
	defaultAPIPort              = 8080

	DefaultSignatureCacheSize = gravity.DefaultRecoveryCacheSize
)

var (
	errMissingGravityID = errors.New("gravity-id is required")
	errZeroPowerScale   = errors.New("power-scale must be positive")
	errZeroAPIPort      = errors.New("api-port must be positive")
)

// Config is the service configuration. Fields are filled by viper; the
// unexported fields are derived in Validate.
type Config struct {
	LogLevel             string `mapstructure:"log-level" json:"log-level"`
	StorageLocation      string `mapstructure:"storage-location" json:"storage-location"`
	GravityID            string `mapstructure:"gravity-id" json:"gravity-id"`
	ThresholdNumerator   uint64 `mapstructure:"threshold-numerator" json:"threshold-numerator"`
	ThresholdDenominator uint64 `mapstructure:"threshold-denominator" json:"threshold-denominator"`
	PowerScale           uint64 `mapstructure:"power-scale" json:"power-scale"`
	GenesisFile          string `mapstructure:"genesis-file" json:"genesis-file"`
	APIPort              uint16 `mapstructure:"api-port" json:"api-port"`
	SignatureCacheSize   uint64 `mapstructure:"signature-cache-size" json:"signature-cache-size"`
	StrictSignatures     bool   `mapstructure:"strict-signatures" json:"strict-signatures"`

	gravityID ids.ID
	logLevel  log.Level
}

// Validate checks the configuration and derives the parsed fields
func (c *Config) Validate() error {
	level, err := log.ToLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	c.logLevel = level

	if c.GravityID == "" {
		return errMissingGravityID
	}
	c.gravityID, err = gravity.GravityIDFromString(c.GravityID)
	if err != nil {
		return fmt.Errorf("invalid gravity-id: %w", err)
	}
	if err := c.GetThreshold().Verify(); err != nil {
		return err
	}
	if c.PowerScale == 0 {
		return errZeroPowerScale
	}
	if c.APIPort == 0 {
		return errZeroAPIPort
	}
	return nil
}

func (c *Config) GetGravityID() ids.ID {
	return c.gravityID
}

func (c *Config) GetLogLevel() log.Level {
	return c.logLevel
}

func (c *Config) GetThreshold() gravity.Threshold {
	return gravity.Threshold{
		Numerator:   c.ThresholdNumerator,
		Denominator: c.ThresholdDenominator,
	}
}

// GetSignatureCacheSize returns the recovery cache size as an int
func (c *Config) GetSignatureCacheSize() int {
	if c.SignatureCacheSize > math.MaxInt {
		return math.MaxInt
	}
	return int(c.SignatureCacheSize)
}

// LoadGenesis reads the genesis validator set from GenesisFile
func (c *Config) LoadGenesis() (*gravity.ValidatorSet, error) {
	if c.GenesisFile == "" {
		return nil, fmt.Errorf("%s is not set", GenesisFileKey)
	}
	return LoadValidatorSet(c.GenesisFile)
}

// LoadValidatorSet reads a JSON validator set:
//
//	{"validators": [{"address": "0x..", "power": 2000}, ...], "nonce": 0}
func LoadValidatorSet(path string) (*gravity.ValidatorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read validator set: %w", err)
	}
	var set gravity.ValidatorSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse validator set %s: %w", path, err)
	}
	return &set, nil
}
