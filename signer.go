// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

var (
	_ Signer = (*signer)(nil)

	ErrNoSigners = errors.New("no signers provided")
)

// Signer produces validator signatures over checkpoint digests. It is what
// a committee member runs off chain; the bridge itself never signs.
type Signer interface {
	Sign(digest common.Hash) (Signature, error)
	Address() common.Address
}

// NewSigner creates a signer for an secp256k1 private key
func NewSigner(sk *ecdsa.PrivateKey) Signer {
	return &signer{
		sk:      sk,
		address: common.Address(crypto.PubkeyToAddress(sk.PublicKey)),
	}
}

// NewSignerFromHex creates a signer from a hex private key, with or without
// the 0x prefix.
func NewSignerFromHex(hexKey string) (Signer, error) {
	if len(hexKey) > 1 && hexKey[0] == '0' && (hexKey[1] == 'x' || hexKey[1] == 'X') {
		hexKey = hexKey[2:]
	}
	sk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewSigner(sk), nil
}

type signer struct {
	sk      *ecdsa.PrivateKey
	address common.Address
}

func (s *signer) Sign(digest common.Hash) (Signature, error) {
	hash := SignedHash(digest)
	raw, err := crypto.Sign(hash[:], s.sk)
	if err != nil {
		return Signature{}, err
	}
	sig, err := SignatureFromBytes(raw)
	if err != nil {
		return Signature{}, err
	}
	sig.V += 27
	return sig, nil
}

func (s *signer) Address() common.Address {
	return s.address
}

// SignForSet collects signatures over digest aligned with set: position i
// holds the signature of set.Validators[i] if one of signers controls that
// address, and the sentinel otherwise.
func SignForSet(set *ValidatorSet, digest common.Hash, signers []Signer) ([]Signature, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}

	sigs := make([]Signature, set.Len())
	for _, s := range signers {
		index := set.Index(s.Address())
		if index == -1 {
			return nil, fmt.Errorf("signer %s not found in validator set", s.Address())
		}
		sig, err := s.Sign(digest)
		if err != nil {
			return nil, fmt.Errorf("failed to sign: %w", err)
		}
		sigs[index] = sig
	}
	return sigs, nil
}
