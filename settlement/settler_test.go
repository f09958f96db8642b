// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gravity"
)

var (
	asset   = common.HexToAddress("0xa5")
	relayer = common.HexToAddress("0xee")
	alice   = common.HexToAddress("0x01")
	bob     = common.HexToAddress("0x02")
)

func transfer(dest common.Address, amount, fee uint64) gravity.Transfer {
	return gravity.Transfer{
		Destination: dest,
		Amount:      uint256.NewInt(amount),
		Fee:         uint256.NewInt(fee),
	}
}

func TestLedgerSettle(t *testing.T) {
	require := require.New(t)

	l := NewLedger()
	require.NoError(l.Fund(asset, uint256.NewInt(100)))

	err := l.Settle(context.Background(), asset, []gravity.Transfer{
		transfer(alice, 10, 2),
		transfer(bob, 20, 5),
		transfer(alice, 5, 0),
	}, relayer)
	require.NoError(err)

	require.Equal(uint256.NewInt(13), l.Balance(asset, alice))
	require.Equal(uint256.NewInt(15), l.Balance(asset, bob))
	require.Equal(uint256.NewInt(7), l.Balance(asset, relayer))
	require.Equal(uint256.NewInt(65), l.Custody(asset))
}

func TestLedgerSettleAllOrNothing(t *testing.T) {
	require := require.New(t)

	l := NewLedger()
	require.NoError(l.Fund(asset, uint256.NewInt(25)))
	require.NoError(l.Settle(context.Background(), asset, []gravity.Transfer{transfer(alice, 5, 1)}, relayer))

	tests := []struct {
		name        string
		transfers   []gravity.Transfer
		expectedErr error
	}{
		{
			name:        "custody exhausted by the last transfer",
			transfers:   []gravity.Transfer{transfer(alice, 10, 1), transfer(bob, 11, 1)},
			expectedErr: ErrInsufficientFunds,
		},
		{
			name:        "fee above amount",
			transfers:   []gravity.Transfer{transfer(alice, 1, 0), transfer(bob, 1, 2)},
			expectedErr: gravity.ErrFeeExceedsAmount,
		},
		{
			name: "total above uint256",
			transfers: []gravity.Transfer{
				{Destination: alice, Amount: new(uint256.Int).SetAllOne(), Fee: new(uint256.Int)},
				transfer(bob, 1, 0),
			},
			expectedErr: ErrBalanceOverflow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Settle(context.Background(), asset, tt.transfers, relayer)
			require.ErrorIs(err, tt.expectedErr)

			require.Equal(uint256.NewInt(4), l.Balance(asset, alice))
			require.True(l.Balance(asset, bob).IsZero())
			require.Equal(uint256.NewInt(1), l.Balance(asset, relayer))
			require.Equal(uint256.NewInt(20), l.Custody(asset))
		})
	}
}

func TestLedgerAssetsAreIndependent(t *testing.T) {
	require := require.New(t)

	other := common.HexToAddress("0xb6")
	l := NewLedger()
	require.NoError(l.Fund(asset, uint256.NewInt(10)))

	err := l.Settle(context.Background(), other, []gravity.Transfer{transfer(alice, 1, 0)}, relayer)
	require.ErrorIs(err, ErrInsufficientFunds)
	require.Equal(uint256.NewInt(10), l.Custody(asset))
}

func TestLedgerFundOverflow(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Fund(asset, new(uint256.Int).SetAllOne()))
	require.ErrorIs(t, l.Fund(asset, uint256.NewInt(1)), ErrBalanceOverflow)
}

func TestLedgerCanceledContext(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Fund(asset, uint256.NewInt(10)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Settle(ctx, asset, []gravity.Transfer{transfer(alice, 1, 0)}, relayer)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, uint256.NewInt(10), l.Custody(asset))
}
