// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variable prefix: log-level is read from GRAVITY_LOG_LEVEL
	EnvPrefix = "gravity"

	// Top-level configuration keys
	LogLevelKey             = "log-level"
	StorageLocationKey      = "storage-location"
	GravityIDKey            = "gravity-id"
	ThresholdNumeratorKey   = "threshold-numerator"
	ThresholdDenominatorKey = "threshold-denominator"
	PowerScaleKey           = "power-scale"
	GenesisFileKey          = "genesis-file"
	APIPortKey              = "api-port"
	SignatureCacheSizeKey   = "signature-cache-size"
	StrictSignaturesKey     = "strict-signatures"
)
