// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"fmt"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// Kind discriminates the entities that can be checkpointed. The kind's type
// tag is part of the encoding so a signature over one kind can never be
// replayed as the other.
type Kind uint8

const (
	KindValset Kind = iota + 1
	KindBatch
)

// Type tags, as bytes32 right-padded ASCII.
var (
	ValsetTag = Bytes32("checkpoint")
	BatchTag  = Bytes32("transactionBatch")
)

func (k Kind) String() string {
	switch k {
	case KindValset:
		return "valset"
	case KindBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Tag returns the bytes32 type tag of the kind
func (k Kind) Tag() [32]byte {
	switch k {
	case KindValset:
		return ValsetTag
	case KindBatch:
		return BatchTag
	default:
		panic(fmt.Sprintf("gravity: no type tag for kind %d", k))
	}
}

// Entity is anything with a checkpoint digest. The set of implementations is
// closed: *ValidatorSet and *Batch.
type Entity interface {
	Kind() Kind
	entity()
}

// Kind implements Entity
func (*ValidatorSet) Kind() Kind { return KindValset }

// Kind implements Entity
func (*Batch) Kind() Kind { return KindBatch }

func (*ValidatorSet) entity() {}
func (*Batch) entity()        {}

var (
	bytes32Type   = mustType("bytes32")
	uint256Type   = mustType("uint256")
	addressType   = mustType("address")
	addressesType = mustType("address[]")
	uint256sType  = mustType("uint256[]")

	valsetArgs = abi.Arguments{
		{Type: bytes32Type},   // gravity ID
		{Type: bytes32Type},   // "checkpoint"
		{Type: uint256Type},   // valset nonce
		{Type: addressesType}, // validators
		{Type: uint256sType},  // powers
	}

	batchArgs = abi.Arguments{
		{Type: bytes32Type},   // gravity ID
		{Type: bytes32Type},   // "transactionBatch"
		{Type: uint256sType},  // amounts
		{Type: addressesType}, // destinations
		{Type: uint256sType},  // fees
		{Type: uint256Type},   // batch nonce
		{Type: addressType},   // asset
		{Type: uint256Type},   // timeout
	}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Encode returns the abi.encode byte layout that validators sign for e.
// The layout is identical to Solidity's abi.encode over the same fields, so
// any party can reproduce it. Parallel-array lengths are guaranteed by the
// constructors; a packing failure here is a programming error.
func Encode(gravityID ids.ID, e Entity) []byte {
	var (
		packed []byte
		err    error
	)
	switch v := e.(type) {
	case *ValidatorSet:
		packed, err = valsetArgs.Pack(
			[32]byte(gravityID),
			v.Kind().Tag(),
			new(big.Int).SetUint64(v.Nonce),
			v.Addresses(),
			v.powersBig(),
		)
	case *Batch:
		packed, err = batchArgs.Pack(
			[32]byte(gravityID),
			v.Kind().Tag(),
			v.amountsBig(),
			v.destinations(),
			v.feesBig(),
			new(big.Int).SetUint64(v.Nonce),
			v.Asset,
			new(big.Int).SetUint64(v.Timeout),
		)
	default:
		panic(fmt.Sprintf("gravity: cannot encode %T", e))
	}
	if err != nil {
		panic(fmt.Sprintf("gravity: encoding %s: %v", e.Kind(), err))
	}
	return packed
}

// Digest returns the Keccak-256 hash of Encode(gravityID, e). For a
// validator set this is the checkpoint stored on chain.
func Digest(gravityID ids.ID, e Entity) common.Hash {
	return common.Hash(crypto.Keccak256Hash(Encode(gravityID, e)))
}
