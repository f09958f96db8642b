// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Threshold is the fraction of the fixed power scale that must sign for a
// transition to be authorized. 6666/10000 means "at least 66.66%".
type Threshold struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

// Verify checks that the threshold is a fraction in (0, 1]
func (t Threshold) Verify() error {
	if t.Denominator == 0 {
		return errors.New("threshold denominator is zero")
	}
	if t.Numerator == 0 {
		return errors.New("threshold numerator is zero")
	}
	if t.Numerator > t.Denominator {
		return fmt.Errorf("threshold %d/%d exceeds 1", t.Numerator, t.Denominator)
	}
	return nil
}

func (t Threshold) String() string {
	return fmt.Sprintf("%d/%d", t.Numerator, t.Denominator)
}

// MeetsThreshold reports whether totalPower, measured on a scale where all
// power sums to totalScale, is at least the threshold fraction of that scale:
//
//	totalPower / totalScale >= Numerator / Denominator
//
// evaluated as totalPower*Denominator >= Numerator*totalScale. Both products
// are taken in 256 bits so neither side can wrap.
func MeetsThreshold(totalPower uint64, threshold Threshold, totalScale uint64) bool {
	signed := new(uint256.Int).Mul(
		uint256.NewInt(totalPower),
		uint256.NewInt(threshold.Denominator),
	)
	required := new(uint256.Int).Mul(
		uint256.NewInt(threshold.Numerator),
		uint256.NewInt(totalScale),
	)
	return !signed.Lt(required)
}

// PowerLedger weighs signatures by the power of the validators that made
// them.
type PowerLedger struct {
	verifier *Verifier
	strict   bool
}

// NewPowerLedger returns a ledger that recovers signers with verifier. In
// strict mode a signature that recovers to the wrong validator fails the
// whole call with ErrInvalidSignature; otherwise it simply counts for
// nothing.
func NewPowerLedger(verifier *Verifier, strict bool) *PowerLedger {
	return &PowerLedger{
		verifier: verifier,
		strict:   strict,
	}
}

// WeighedPower returns the summed power of the validators whose signature
// over digest is present and valid. validators and signatures are parallel:
// signatures[i] is validators[i]'s signature or the sentinel.
//
// The ordering check runs before any signature is recovered, so a list that
// names a validator twice is rejected without counting anything.
func (l *PowerLedger) WeighedPower(validators []Validator, digest common.Hash, signatures []Signature) (uint64, error) {
	if len(validators) != len(signatures) {
		return 0, fmt.Errorf("%w: %d validators, %d signatures", ErrLengthMismatch, len(validators), len(signatures))
	}
	if err := CheckOrdering(validators); err != nil {
		return 0, err
	}

	var power uint64
	for i, v := range validators {
		sig := signatures[i]
		if sig.IsEmpty() {
			continue
		}
		ok, err := l.verifier.Matches(digest, sig, v.Address)
		if err != nil {
			return 0, fmt.Errorf("signature %d: %w", i, err)
		}
		if !ok {
			if l.strict {
				return 0, fmt.Errorf("%w: signature %d is not from %s", ErrInvalidSignature, i, v.Address)
			}
			continue
		}
		newPower, err := AddUint64(power, v.Power)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPowerOverflow, err)
		}
		power = newPower
	}
	return power, nil
}

// VerifySignatures checks that the signatures over digest carry at least the
// threshold fraction of totalScale. It returns the signed power.
func (l *PowerLedger) VerifySignatures(
	set *ValidatorSet,
	digest common.Hash,
	signatures []Signature,
	threshold Threshold,
	totalScale uint64,
) (uint64, error) {
	power, err := l.WeighedPower(set.Validators, digest, signatures)
	if err != nil {
		return 0, err
	}
	if !MeetsThreshold(power, threshold, totalScale) {
		return power, fmt.Errorf("%w: signed power %d of %d below threshold %s",
			ErrInsufficientSigningPower, power, totalScale, threshold)
	}
	return power, nil
}
