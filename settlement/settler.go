// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package settlement moves assets once a batch has been authorized.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/gravity"
)

var (
	_ Settler = (*Ledger)(nil)

	ErrInsufficientFunds = errors.New("insufficient custody funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Settler applies the transfers of an authorized batch. Settle must be
// all-or-nothing: on error no balance may have changed.
type Settler interface {
	Settle(ctx context.Context, asset common.Address, transfers []gravity.Transfer, relayer common.Address) error
}

// Ledger is an in-memory Settler. Each asset has a custody balance, funded
// by deposits, that pays out settled transfers.
type Ledger struct {
	lock     sync.RWMutex
	custody  map[common.Address]*uint256.Int
	balances map[common.Address]map[common.Address]*uint256.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		custody:  make(map[common.Address]*uint256.Int),
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Fund adds amount of asset to custody
func (l *Ledger) Fund(asset common.Address, amount *uint256.Int) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	current := l.custodyOf(asset)
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("%w: custody of %s", ErrBalanceOverflow, asset)
	}
	l.custody[asset] = sum
	return nil
}

// Custody returns the undistributed balance of asset
func (l *Ledger) Custody(asset common.Address) *uint256.Int {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return new(uint256.Int).Set(l.custodyOf(asset))
}

// Balance returns account's balance of asset
func (l *Ledger) Balance(asset, account common.Address) *uint256.Int {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if b, ok := l.balances[asset][account]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// Settle pays each transfer's net amount to its destination and the summed
// fees to relayer, out of asset's custody.
func (l *Ledger) Settle(ctx context.Context, asset common.Address, transfers []gravity.Transfer, relayer common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	// Compute every new balance before writing any of them.
	updated := make(map[common.Address]*uint256.Int)
	credit := func(account common.Address, amount *uint256.Int) error {
		current, ok := updated[account]
		if !ok {
			current = new(uint256.Int)
			if b, ok := l.balances[asset][account]; ok {
				current.Set(b)
			}
		}
		sum, overflow := new(uint256.Int).AddOverflow(current, amount)
		if overflow {
			return fmt.Errorf("%w: %s balance of %s", ErrBalanceOverflow, account, asset)
		}
		updated[account] = sum
		return nil
	}

	total, err := gravity.TotalAmount(transfers)
	if err != nil {
		return fmt.Errorf("%w: batch of %s: %w", ErrBalanceOverflow, asset, err)
	}
	fees := new(uint256.Int)
	for i, t := range transfers {
		if t.Fee.Gt(t.Amount) {
			return fmt.Errorf("%w: transfer %d", gravity.ErrFeeExceedsAmount, i)
		}
		fees.Add(fees, t.Fee)
		if err := credit(t.Destination, t.Net()); err != nil {
			return err
		}
	}
	if err := credit(relayer, fees); err != nil {
		return err
	}

	custody := l.custodyOf(asset)
	if custody.Lt(total) {
		return fmt.Errorf("%w: need %s of %s, custody holds %s", ErrInsufficientFunds, total, asset, custody)
	}

	l.custody[asset] = new(uint256.Int).Sub(custody, total)
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		l.balances[asset] = accounts
	}
	for account, balance := range updated {
		accounts[account] = balance
	}
	return nil
}

func (l *Ledger) custodyOf(asset common.Address) *uint256.Int {
	if c, ok := l.custody[asset]; ok {
		return c
	}
	return new(uint256.Int)
}
