// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// BuildFlagSet returns the flags for every configuration key
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("gravity", pflag.ContinueOnError)
	fs.String(ConfigFileKey, "", "Path to a JSON config file")
	fs.String(LogLevelKey, defaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String(StorageLocationKey, "", "SQLite database path; empty keeps state in memory")
	fs.String(GravityIDKey, "", "Deployment domain separator: ASCII name or 0x-prefixed 32 byte hex")
	fs.Uint64(ThresholdNumeratorKey, defaultThresholdNumerator, "Signing threshold numerator")
	fs.Uint64(ThresholdDenominatorKey, defaultThresholdDenominator, "Signing threshold denominator")
	fs.Uint64(PowerScaleKey, defaultPowerScale, "Fixed total power scale")
	fs.String(GenesisFileKey, "", "Path to the genesis validator set JSON")
	fs.Uint16(APIPortKey, defaultAPIPort, "HTTP API port")
	fs.Uint64(SignatureCacheSizeKey, DefaultSignatureCacheSize, "Number of recovered signers to cache")
	fs.Bool(StrictSignaturesKey, false, "Reject a signature that does not belong to its validator")
	return fs
}

// BuildViper builds the viper instance. All config keys may be provided via
// flag, environment variable or the optional JSON config file.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if filename := v.GetString(ConfigFileKey); filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
	}

	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(ThresholdNumeratorKey, defaultThresholdNumerator)
	v.SetDefault(ThresholdDenominatorKey, defaultThresholdDenominator)
	v.SetDefault(PowerScaleKey, defaultPowerScale)
	v.SetDefault(APIPortKey, defaultAPIPort)
	v.SetDefault(SignatureCacheSizeKey, DefaultSignatureCacheSize)
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}
