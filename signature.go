// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
)

// SignatureLen is the length of a wire-encoded signature: R || S || V
const SignatureLen = 65

// signedMessagePrefix is the EIP-191 personal message prefix for a 32 byte
// payload. Validators sign prefix || digest, never the bare digest.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// Signature is a recoverable secp256k1 signature over a checkpoint digest.
//
// A signature with V == 0 is the "did not sign" sentinel. Valid signatures
// always carry V == 27 or V == 28, so the sentinel can never collide with a
// real signature, and R and S of a sentinel are never looked at.
type Signature struct {
	V uint8
	R common.Hash
	S common.Hash
}

// EmptySignature is the sentinel for a validator that did not sign
var EmptySignature = Signature{}

// IsEmpty reports whether s is the "did not sign" sentinel
func (s Signature) IsEmpty() bool {
	return s.V == 0
}

// Bytes returns the 65 byte wire form R || S || V
func (s Signature) Bytes() []byte {
	b := make([]byte, SignatureLen)
	copy(b[:32], s.R[:])
	copy(b[32:64], s.S[:])
	b[64] = s.V
	return b
}

// String returns the 0x-prefixed hex wire form
func (s Signature) String() string {
	return hexutil.Encode(s.Bytes())
}

// SignatureFromBytes parses the 65 byte wire form. An empty slice decodes
// to the sentinel.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) == 0 {
		return EmptySignature, nil
	}
	if len(b) != SignatureLen {
		return Signature{}, fmt.Errorf("%w: length %d, expected %d", ErrMalformedSignature, len(b), SignatureLen)
	}
	var sig Signature
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	return sig, nil
}

// ParseSignature decodes a 0x-prefixed hex signature. "" and "0x" decode to
// the sentinel.
func ParseSignature(s string) (Signature, error) {
	if s == "" || s == "0x" {
		return EmptySignature, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return SignatureFromBytes(b)
}

// MarshalJSON encodes the signature as a hex string
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex string signature
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	sig, err := ParseSignature(str)
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

// SignedHash returns the EIP-191 hash a validator actually signs for digest
func SignedHash(digest common.Hash) common.Hash {
	return common.Hash(crypto.Keccak256Hash([]byte(signedMessagePrefix), digest[:]))
}

// recoverSigner recovers the address that produced sig over digest. It is
// never called on the sentinel.
func recoverSigner(digest common.Hash, sig Signature) (common.Address, error) {
	if sig.V != 27 && sig.V != 28 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig.V)
	}
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if !crypto.ValidateSignatureValues(sig.V-27, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: r or s out of range", ErrMalformedSignature)
	}

	raw := sig.Bytes()
	raw[64] -= 27
	hash := SignedHash(digest)
	pub, err := crypto.SigToPub(hash[:], raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return common.Address(crypto.PubkeyToAddress(*pub)), nil
}
