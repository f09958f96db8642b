// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"math"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

// signedSet builds a sorted set from signers with the given powers and
// returns it with signatures over digest from the first signCount members
// in set order.
func signedSet(t *testing.T, signers []Signer, powers []uint64, digest common.Hash, signCount int) (*ValidatorSet, []Signature) {
	t.Helper()
	addrs := make([]common.Address, len(signers))
	for i, s := range signers {
		addrs[i] = s.Address()
	}
	set, err := NewValidatorSet(addrs, powers, 0)
	require.NoError(t, err)
	set = set.Sorted()

	sigs := make([]Signature, set.Len())
	bySigner := make(map[common.Address]Signer, len(signers))
	for _, s := range signers {
		bySigner[s.Address()] = s
	}
	for i := 0; i < signCount; i++ {
		sig, err := bySigner[set.Validators[i].Address].Sign(digest)
		require.NoError(t, err)
		sigs[i] = sig
	}
	return set, sigs
}

func TestMeetsThreshold(t *testing.T) {
	tests := []struct {
		name      string
		power     uint64
		threshold Threshold
		scale     uint64
		expected  bool
	}{
		{
			name:      "exactly at threshold",
			power:     6666,
			threshold: Threshold{Numerator: 6666, Denominator: 10000},
			scale:     10000,
			expected:  true,
		},
		{
			name:      "one below threshold",
			power:     6665,
			threshold: Threshold{Numerator: 6666, Denominator: 10000},
			scale:     10000,
			expected:  false,
		},
		{
			name:      "zero power",
			power:     0,
			threshold: Threshold{Numerator: 1, Denominator: 3},
			scale:     3,
			expected:  false,
		},
		{
			name:      "full power at unit threshold",
			power:     10000,
			threshold: Threshold{Numerator: 1, Denominator: 1},
			scale:     10000,
			expected:  true,
		},
		{
			name:      "products exceed 64 bits",
			power:     math.MaxUint64,
			threshold: Threshold{Numerator: math.MaxUint64 - 1, Denominator: math.MaxUint64},
			scale:     math.MaxUint64,
			expected:  true,
		},
		{
			name:      "products exceed 64 bits below threshold",
			power:     math.MaxUint64 - 2,
			threshold: Threshold{Numerator: math.MaxUint64 - 1, Denominator: math.MaxUint64},
			scale:     math.MaxUint64,
			expected:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, MeetsThreshold(tt.power, tt.threshold, tt.scale))
		})
	}
}

func TestMeetsThresholdMonotonic(t *testing.T) {
	threshold := Threshold{Numerator: 6666, Denominator: 10000}
	met := false
	for power := uint64(6000); power <= 7000; power++ {
		ok := MeetsThreshold(power, threshold, 10000)
		if met {
			require.True(t, ok, "power %d lost the threshold", power)
		}
		met = ok
	}
	require.True(t, met)
}

func TestThresholdVerify(t *testing.T) {
	require := require.New(t)

	require.NoError(Threshold{Numerator: 6666, Denominator: 10000}.Verify())
	require.NoError(Threshold{Numerator: 1, Denominator: 1}.Verify())
	require.Error(Threshold{Numerator: 1, Denominator: 0}.Verify())
	require.Error(Threshold{Numerator: 0, Denominator: 1}.Verify())
	require.Error(Threshold{Numerator: 2, Denominator: 1}.Verify())
	require.Equal("6666/10000", Threshold{Numerator: 6666, Denominator: 10000}.String())
}

func TestWeighedPower(t *testing.T) {
	signers := testSigners(t, 5)
	powers := []uint64{1000, 2000, 3000, 1500, 2500}
	digest := common.HexToHash("0xfeed")

	for signCount := 0; signCount <= len(signers); signCount++ {
		set, sigs := signedSet(t, signers, powers, digest, signCount)

		var expected uint64
		for i := 0; i < signCount; i++ {
			expected += set.Validators[i].Power
		}

		ledger := NewPowerLedger(newTestVerifier(t), false)
		power, err := ledger.WeighedPower(set.Validators, digest, sigs)
		require.NoError(t, err)
		require.Equal(t, expected, power)
	}
}

func TestWeighedPowerAddingSignaturesNeverDecreases(t *testing.T) {
	signers := testSigners(t, 4)
	digest := common.HexToHash("0xbeef")
	set, sigs := signedSet(t, signers, []uint64{10, 20, 30, 40}, digest, 4)

	ledger := NewPowerLedger(newTestVerifier(t), false)
	partial := make([]Signature, len(sigs))
	var last uint64
	for i := range sigs {
		partial[i] = sigs[i]
		power, err := ledger.WeighedPower(set.Validators, digest, partial)
		require.NoError(t, err)
		require.GreaterOrEqual(t, power, last)
		last = power
	}
	require.Equal(t, uint64(100), last)
}

func TestWeighedPowerRejectsBadOrdering(t *testing.T) {
	signers := testSigners(t, 3)
	digest := common.HexToHash("0xabba")
	set, sigs := signedSet(t, signers, []uint64{1, 1, 1}, digest, 3)

	tests := []struct {
		name       string
		validators []Validator
		sigs       []Signature
	}{
		{
			name:       "swapped",
			validators: []Validator{set.Validators[1], set.Validators[0], set.Validators[2]},
			sigs:       []Signature{sigs[1], sigs[0], sigs[2]},
		},
		{
			name:       "duplicate signer",
			validators: []Validator{set.Validators[0], set.Validators[0], set.Validators[1]},
			sigs:       []Signature{sigs[0], sigs[0], sigs[1]},
		},
		{
			name:       "descending",
			validators: []Validator{set.Validators[2], set.Validators[1], set.Validators[0]},
			sigs:       []Signature{sigs[2], sigs[1], sigs[0]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t)
			ledger := NewPowerLedger(v, false)
			power, err := ledger.WeighedPower(tt.validators, digest, tt.sigs)
			require.ErrorIs(t, err, ErrUnsortedOrDuplicateValidators)
			require.Zero(t, power)
			// rejected before any recovery
			require.Zero(t, v.recovered.Len())
		})
	}
}

func TestWeighedPowerLengthMismatch(t *testing.T) {
	signers := testSigners(t, 2)
	digest := common.HexToHash("0x01")
	set, sigs := signedSet(t, signers, []uint64{1, 1}, digest, 2)

	ledger := NewPowerLedger(newTestVerifier(t), false)
	_, err := ledger.WeighedPower(set.Validators, digest, sigs[:1])
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestWeighedPowerWrongSigner(t *testing.T) {
	signers := testSigners(t, 3)
	digest := common.HexToHash("0x0102")
	set, sigs := signedSet(t, signers, []uint64{5, 7, 11}, digest, 3)

	// validator 0's slot carries validator 1's signature
	sigs[0] = sigs[1]

	lenient := NewPowerLedger(newTestVerifier(t), false)
	power, err := lenient.WeighedPower(set.Validators, digest, sigs)
	require.NoError(t, err)
	require.Equal(t, set.Validators[1].Power+set.Validators[2].Power, power)

	strict := NewPowerLedger(newTestVerifier(t), true)
	_, err = strict.WeighedPower(set.Validators, digest, sigs)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWeighedPowerMalformedAborts(t *testing.T) {
	signers := testSigners(t, 2)
	digest := common.HexToHash("0x0103")
	set, sigs := signedSet(t, signers, []uint64{5, 7}, digest, 2)

	sigs[1].V = 29
	ledger := NewPowerLedger(newTestVerifier(t), false)
	_, err := ledger.WeighedPower(set.Validators, digest, sigs)
	require.ErrorIs(t, err, ErrMalformedSignature)
}

func TestWeighedPowerOverflow(t *testing.T) {
	signers := testSigners(t, 2)
	digest := common.HexToHash("0x0104")
	set, sigs := signedSet(t, signers, []uint64{math.MaxUint64, 1}, digest, 2)

	ledger := NewPowerLedger(newTestVerifier(t), false)
	_, err := ledger.WeighedPower(set.Validators, digest, sigs)
	require.ErrorIs(t, err, ErrPowerOverflow)
}

func TestVerifySignatures(t *testing.T) {
	signers := testSigners(t, 5)
	digest := common.HexToHash("0x0105")
	powers := []uint64{2000, 2000, 2000, 2000, 2000}
	threshold := Threshold{Numerator: 6666, Denominator: 10000}

	tests := []struct {
		signCount   int
		expectedErr error
	}{
		{signCount: 0, expectedErr: ErrInsufficientSigningPower},
		{signCount: 3, expectedErr: ErrInsufficientSigningPower},
		{signCount: 4},
		{signCount: 5},
	}
	for _, tt := range tests {
		set, sigs := signedSet(t, signers, powers, digest, tt.signCount)
		ledger := NewPowerLedger(newTestVerifier(t), false)
		power, err := ledger.VerifySignatures(set, digest, sigs, threshold, 10000)
		require.ErrorIs(t, err, tt.expectedErr)
		require.Equal(t, uint64(tt.signCount)*2000, power)
	}
}
