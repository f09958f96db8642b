// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/gravity"
)

// RotateRequest is the wire form of a rotation call. Addresses and powers
// arrive as parallel arrays; Decode pairs them.
type RotateRequest struct {
	NewValidators     []common.Address    `json:"newValidators"`
	NewPowers         []uint64            `json:"newPowers"`
	NewNonce          uint64              `json:"newNonce"`
	CurrentValidators []common.Address    `json:"currentValidators"`
	CurrentPowers     []uint64            `json:"currentPowers"`
	CurrentNonce      uint64              `json:"currentNonce"`
	Signatures        []gravity.Signature `json:"signatures"`
}

// Decode checks array lengths and returns the new set, the claimed current
// set and the signatures.
func (r *RotateRequest) Decode() (*gravity.ValidatorSet, *gravity.ValidatorSet, []gravity.Signature, error) {
	newSet, err := gravity.NewValidatorSet(r.NewValidators, r.NewPowers, r.NewNonce)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("new validator set: %w", err)
	}
	if newSet.Len() == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty new validator set", gravity.ErrMalformedValidatorSet)
	}
	currentSet, err := gravity.NewValidatorSet(r.CurrentValidators, r.CurrentPowers, r.CurrentNonce)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("current validator set: %w", err)
	}
	if len(r.Signatures) != currentSet.Len() {
		return nil, nil, nil, fmt.Errorf("%w: %d current validators, %d signatures",
			gravity.ErrLengthMismatch, currentSet.Len(), len(r.Signatures))
	}
	return newSet, currentSet, r.Signatures, nil
}

// BatchRequest is the wire form of a batch settlement call
type BatchRequest struct {
	Amounts          []*uint256.Int      `json:"amounts"`
	Destinations     []common.Address    `json:"destinations"`
	Fees             []*uint256.Int      `json:"fees"`
	Nonce            uint64              `json:"batchNonce"`
	Asset            common.Address      `json:"asset"`
	Timeout          uint64              `json:"timeout"`
	SignerValidators []common.Address    `json:"signerValidators"`
	SignerPowers     []uint64            `json:"signerPowers"`
	SignerNonce      uint64              `json:"signerNonce"`
	Signatures       []gravity.Signature `json:"signatures"`
	Relayer          common.Address      `json:"relayer"`
}

// Decode checks array lengths and returns the batch, the signing set and the
// signatures.
func (r *BatchRequest) Decode() (*gravity.Batch, *gravity.ValidatorSet, []gravity.Signature, error) {
	batch, err := gravity.NewBatch(r.Amounts, r.Destinations, r.Fees, r.Nonce, r.Asset, r.Timeout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("batch: %w", err)
	}
	signerSet, err := gravity.NewValidatorSet(r.SignerValidators, r.SignerPowers, r.SignerNonce)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("signer validator set: %w", err)
	}
	if len(r.Signatures) != signerSet.Len() {
		return nil, nil, nil, fmt.Errorf("%w: %d signer validators, %d signatures",
			gravity.ErrLengthMismatch, signerSet.Len(), len(r.Signatures))
	}
	return batch, signerSet, r.Signatures, nil
}

// NewRotateRequest builds the wire form of a rotation
func NewRotateRequest(newSet, currentSet *gravity.ValidatorSet, sigs []gravity.Signature) *RotateRequest {
	return &RotateRequest{
		NewValidators:     newSet.Addresses(),
		NewPowers:         newSet.Powers(),
		NewNonce:          newSet.Nonce,
		CurrentValidators: currentSet.Addresses(),
		CurrentPowers:     currentSet.Powers(),
		CurrentNonce:      currentSet.Nonce,
		Signatures:        sigs,
	}
}

// NewBatchRequest builds the wire form of a batch settlement
func NewBatchRequest(
	batch *gravity.Batch,
	signerSet *gravity.ValidatorSet,
	sigs []gravity.Signature,
	relayer common.Address,
) *BatchRequest {
	r := &BatchRequest{
		Amounts:          make([]*uint256.Int, len(batch.Transfers)),
		Destinations:     make([]common.Address, len(batch.Transfers)),
		Fees:             make([]*uint256.Int, len(batch.Transfers)),
		Nonce:            batch.Nonce,
		Asset:            batch.Asset,
		Timeout:          batch.Timeout,
		SignerValidators: signerSet.Addresses(),
		SignerPowers:     signerSet.Powers(),
		SignerNonce:      signerSet.Nonce,
		Signatures:       sigs,
		Relayer:          relayer,
	}
	for i, t := range batch.Transfers {
		r.Amounts[i] = t.Amount
		r.Destinations[i] = t.Destination
		r.Fees[i] = t.Fee
	}
	return r
}
