// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/luxfi/geth/common"
)

// Validator is a member of a validator set
type Validator struct {
	Address common.Address `json:"address"`
	Power   uint64         `json:"power"`
}

// Less returns true if this validator orders before the other
func (v Validator) Less(other Validator) bool {
	return compareAddresses(v.Address, other.Address) < 0
}

// ValidatorSet is an ordered validator list plus the rotation nonce it was
// installed under. Two sets with the same members but different nonces have
// different checkpoints.
type ValidatorSet struct {
	Validators []Validator `json:"validators"`
	Nonce      uint64      `json:"nonce"`
}

// NewValidatorSet pairs the parallel address and power arrays of a rotation
// or batch call into a validator set. Ordering is not checked here; that is
// the power ledger's job.
func NewValidatorSet(addresses []common.Address, powers []uint64, nonce uint64) (*ValidatorSet, error) {
	if len(addresses) != len(powers) {
		return nil, fmt.Errorf("%w: %d addresses, %d powers", ErrLengthMismatch, len(addresses), len(powers))
	}
	validators := make([]Validator, len(addresses))
	for i := range addresses {
		validators[i] = Validator{
			Address: addresses[i],
			Power:   powers[i],
		}
	}
	return &ValidatorSet{
		Validators: validators,
		Nonce:      nonce,
	}, nil
}

// Len returns the number of validators
func (s *ValidatorSet) Len() int {
	return len(s.Validators)
}

// Addresses returns the validator addresses in set order
func (s *ValidatorSet) Addresses() []common.Address {
	addrs := make([]common.Address, len(s.Validators))
	for i, v := range s.Validators {
		addrs[i] = v.Address
	}
	return addrs
}

// Powers returns the validator powers in set order
func (s *ValidatorSet) Powers() []uint64 {
	powers := make([]uint64, len(s.Validators))
	for i, v := range s.Validators {
		powers[i] = v.Power
	}
	return powers
}

// TotalPower returns the sum of all validator powers
func (s *ValidatorSet) TotalPower() (uint64, error) {
	var total uint64
	for _, v := range s.Validators {
		newTotal, err := AddUint64(total, v.Power)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPowerOverflow, err)
		}
		total = newTotal
	}
	return total, nil
}

// Sorted returns a copy of the set with validators in canonical order.
// Signers use it to build a set that will pass CheckOrdering.
func (s *ValidatorSet) Sorted() *ValidatorSet {
	validators := make([]Validator, len(s.Validators))
	copy(validators, s.Validators)
	sort.Slice(validators, func(i, j int) bool {
		return validators[i].Less(validators[j])
	})
	return &ValidatorSet{
		Validators: validators,
		Nonce:      s.Nonce,
	}
}

// Index returns the position of addr in the set, or -1
func (s *ValidatorSet) Index(addr common.Address) int {
	for i, v := range s.Validators {
		if v.Address == addr {
			return i
		}
	}
	return -1
}

func (s *ValidatorSet) powersBig() []*big.Int {
	out := make([]*big.Int, len(s.Validators))
	for i, v := range s.Validators {
		out[i] = new(big.Int).SetUint64(v.Power)
	}
	return out
}

// CheckOrdering reports whether validators are in strictly ascending address
// order. A repeated address can never be strictly ascending, so this is also
// the duplicate-signer check.
func CheckOrdering(validators []Validator) error {
	for i := 1; i < len(validators); i++ {
		if !validators[i-1].Less(validators[i]) {
			return fmt.Errorf("%w: index %d (%s) does not follow %s",
				ErrUnsortedOrDuplicateValidators, i, validators[i].Address, validators[i-1].Address)
		}
	}
	return nil
}
