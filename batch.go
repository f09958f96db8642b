// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Transfer is a single outbound payment in a batch. The destination receives
// Amount minus Fee; the fee goes to the relayer that submits the batch.
type Transfer struct {
	Destination common.Address `json:"destination"`
	Amount      *uint256.Int   `json:"amount"`
	Fee         *uint256.Int   `json:"fee"`
}

// Net returns Amount - Fee. Callers must have checked Fee <= Amount.
func (t Transfer) Net() *uint256.Int {
	return new(uint256.Int).Sub(t.Amount, t.Fee)
}

// Batch is a bundle of transfers of a single asset authorized together
type Batch struct {
	Transfers []Transfer     `json:"transfers"`
	Nonce     uint64         `json:"nonce"`
	Asset     common.Address `json:"asset"`
	Timeout   uint64         `json:"timeout"`
}

// NewBatch pairs the amounts, destinations and fees arrays of a settlement
// call into a batch.
func NewBatch(
	amounts []*uint256.Int,
	destinations []common.Address,
	fees []*uint256.Int,
	nonce uint64,
	asset common.Address,
	timeout uint64,
) (*Batch, error) {
	if len(amounts) != len(destinations) || len(amounts) != len(fees) {
		return nil, fmt.Errorf("%w: %d amounts, %d destinations, %d fees",
			ErrLengthMismatch, len(amounts), len(destinations), len(fees))
	}
	transfers := make([]Transfer, len(amounts))
	for i := range amounts {
		if amounts[i] == nil || fees[i] == nil {
			return nil, fmt.Errorf("%w: missing amount or fee at index %d", ErrMalformedBatch, i)
		}
		transfers[i] = Transfer{
			Destination: destinations[i],
			Amount:      amounts[i],
			Fee:         fees[i],
		}
	}
	return &Batch{
		Transfers: transfers,
		Nonce:     nonce,
		Asset:     asset,
		Timeout:   timeout,
	}, nil
}

// Verify checks that every transfer can pay its own fee
func (b *Batch) Verify() error {
	for i, t := range b.Transfers {
		if t.Fee.Gt(t.Amount) {
			return fmt.Errorf("%w: transfer %d fee %s > amount %s", ErrFeeExceedsAmount, i, t.Fee, t.Amount)
		}
	}
	return nil
}

// TotalAmount returns the sum of the transfer amounts, which is what a batch
// draws from custody.
func TotalAmount(transfers []Transfer) (*uint256.Int, error) {
	total := new(uint256.Int)
	for i, t := range transfers {
		if _, overflow := total.AddOverflow(total, t.Amount); overflow {
			return nil, fmt.Errorf("total amount overflows uint256 at transfer %d", i)
		}
	}
	return total, nil
}

func (b *Batch) amountsBig() []*big.Int {
	out := make([]*big.Int, len(b.Transfers))
	for i, t := range b.Transfers {
		out[i] = t.Amount.ToBig()
	}
	return out
}

func (b *Batch) feesBig() []*big.Int {
	out := make([]*big.Int, len(b.Transfers))
	for i, t := range b.Transfers {
		out[i] = t.Fee.ToBig()
	}
	return out
}

func (b *Batch) destinations() []common.Address {
	out := make([]common.Address, len(b.Transfers))
	for i, t := range b.Transfers {
		out[i] = t.Destination
	}
	return out
}
