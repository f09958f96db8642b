// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"bytes"
	"errors"
	"math"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// AddUint64 adds two uint64 values and returns an error if overflow
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, errors.New("addition would overflow")
	}
	return a + b, nil
}

// Bytes32 right-pads s with zero bytes to 32 bytes, the way Solidity
// converts a short string literal to bytes32. Longer strings are truncated.
func Bytes32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}

// GravityIDFromString builds a gravity ID from an ASCII name ("foo") or a
// 0x-prefixed 32-byte hex string.
func GravityIDFromString(s string) (ids.ID, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		b := common.FromHex(s)
		if len(b) != 32 {
			return ids.ID{}, errors.New("hex gravity ID must be 32 bytes")
		}
		return ids.ID(common.BytesToHash(b)), nil
	}
	if len(s) == 0 || len(s) > 32 {
		return ids.ID{}, errors.New("gravity ID must be 1 to 32 ASCII bytes")
	}
	return ids.ID(Bytes32(s)), nil
}

// compareAddresses orders addresses by their raw bytes.
func compareAddresses(a, b common.Address) int {
	return bytes.Compare(a[:], b[:])
}
