// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge holds the bridge state and the two transitions that mutate
// it: validator set rotation and batch settlement.
package bridge

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"

	"github.com/luxfi/gravity"
)

var errZeroPowerScale = errors.New("power scale is zero")

// State is the bridge's single source of truth. Only RotateValidatorSet
// writes Checkpoint and ValsetNonce, and only SettleBatch writes
// LastBatchNonces.
type State struct {
	GravityID       ids.ID                    `json:"gravityId"`
	Checkpoint      common.Hash               `json:"checkpoint"`
	ValsetNonce     uint64                    `json:"valsetNonce"`
	Threshold       gravity.Threshold         `json:"threshold"`
	PowerScale      uint64                    `json:"powerScale"`
	LastBatchNonces map[common.Address]uint64 `json:"lastBatchNonces"`
	LastEventNonce  uint64                    `json:"lastEventNonce"`
}

// NewGenesisState installs genesis as the first trusted validator set.
//
// The genesis set must be ordered, its total power may not exceed powerScale,
// and it must on its own be able to meet threshold.
func NewGenesisState(
	gravityID ids.ID,
	genesis *gravity.ValidatorSet,
	threshold gravity.Threshold,
	powerScale uint64,
) (*State, error) {
	if err := threshold.Verify(); err != nil {
		return nil, err
	}
	if powerScale == 0 {
		return nil, errZeroPowerScale
	}
	if err := checkValidatorSet(genesis, threshold, powerScale); err != nil {
		return nil, fmt.Errorf("invalid genesis validator set: %w", err)
	}
	return &State{
		GravityID:       gravityID,
		Checkpoint:      gravity.Digest(gravityID, genesis),
		ValsetNonce:     genesis.Nonce,
		Threshold:       threshold,
		PowerScale:      powerScale,
		LastBatchNonces: make(map[common.Address]uint64),
	}, nil
}

// LastBatchNonce returns the last executed batch nonce for asset, or 0 if no
// batch of that asset has executed.
func (s *State) LastBatchNonce(asset common.Address) uint64 {
	return s.LastBatchNonces[asset]
}

// Clone returns a deep copy of s
func (s *State) Clone() *State {
	c := *s
	c.LastBatchNonces = make(map[common.Address]uint64, len(s.LastBatchNonces))
	for asset, nonce := range s.LastBatchNonces {
		c.LastBatchNonces[asset] = nonce
	}
	return &c
}

// Verify checks the fields that every loaded state must satisfy
func (s *State) Verify() error {
	if err := s.Threshold.Verify(); err != nil {
		return err
	}
	if s.PowerScale == 0 {
		return errZeroPowerScale
	}
	return nil
}

// checkValidatorSet is the shape check applied to every set before it is
// installed: non-empty, ordered, no more power than the scale, and enough
// power to ever authorize a transition.
func checkValidatorSet(set *gravity.ValidatorSet, threshold gravity.Threshold, powerScale uint64) error {
	if set.Len() == 0 {
		return fmt.Errorf("%w: empty validator set", gravity.ErrMalformedValidatorSet)
	}
	if err := gravity.CheckOrdering(set.Validators); err != nil {
		return err
	}
	total, err := set.TotalPower()
	if err != nil {
		return err
	}
	if total > powerScale {
		return fmt.Errorf("%w: total power %d exceeds scale %d", gravity.ErrMalformedValidatorSet, total, powerScale)
	}
	if !gravity.MeetsThreshold(total, threshold, powerScale) {
		return fmt.Errorf("%w: total power %d can never reach threshold %s of %d",
			gravity.ErrInsufficientSigningPower, total, threshold, powerScale)
	}
	return nil
}
