// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/gravity/cache"
)

// DefaultRecoveryCacheSize is the number of recovered signers kept by a
// Verifier created with NewVerifier(0).
const DefaultRecoveryCacheSize = 1024

type recoveryKey struct {
	digest common.Hash
	sig    Signature
}

// Verifier recovers signer addresses from signatures. It says whether a
// signature is valid for an address, not whether that address is trusted.
type Verifier struct {
	recovered *cache.LRUCache[recoveryKey, common.Address]
}

// NewVerifier returns a Verifier that memoizes up to cacheSize recoveries.
// Recovery is a pure function of (digest, signature), so cached results
// never go stale.
func NewVerifier(cacheSize int) (*Verifier, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultRecoveryCacheSize
	}
	c, err := cache.NewLRUCache[recoveryKey, common.Address](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Verifier{recovered: c}, nil
}

// Recover returns the address that signed digest. The sentinel and any
// signature that does not parse are rejected with ErrMalformedSignature.
func (v *Verifier) Recover(digest common.Hash, sig Signature) (common.Address, error) {
	if sig.IsEmpty() {
		return common.Address{}, ErrMalformedSignature
	}
	return v.recovered.Get(
		recoveryKey{digest: digest, sig: sig},
		func(k recoveryKey) (common.Address, error) {
			return recoverSigner(k.digest, k.sig)
		},
	)
}

// Matches reports whether sig is expected's signature over digest. The
// sentinel never matches and is never passed to recovery.
func (v *Verifier) Matches(digest common.Hash, sig Signature, expected common.Address) (bool, error) {
	if sig.IsEmpty() {
		return false, nil
	}
	signer, err := v.Recover(digest, sig)
	if err != nil {
		return false, err
	}
	return signer == expected, nil
}
