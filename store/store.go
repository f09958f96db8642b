// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/gravity/bridge"
)

// Open returns a SQLiteStore for a non-empty location and a MemoryStore
// otherwise.
func Open(logger log.Logger, location string) (bridge.Store, func() error, error) {
	if location == "" {
		return NewMemoryStore(), func() error { return nil }, nil
	}
	s, err := NewSQLiteStore(logger, location)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// LoadOrInit loads the stored state, or saves and returns genesis if none
// is stored yet. A stored state for another gravity ID is an error.
func LoadOrInit(ctx context.Context, s bridge.Store, genesis *bridge.State) (*bridge.State, error) {
	st, err := s.Load(ctx)
	switch {
	case errors.Is(err, bridge.ErrStateNotFound):
		if genesis == nil {
			return nil, err
		}
		if err := s.Save(ctx, genesis); err != nil {
			return nil, err
		}
		return genesis.Clone(), nil
	case err != nil:
		return nil, err
	}
	if err := st.Verify(); err != nil {
		return nil, fmt.Errorf("stored state is invalid: %w", err)
	}
	if genesis != nil && genesis.GravityID != st.GravityID {
		return nil, fmt.Errorf("stored gravity ID %s does not match configured %s",
			common.Hash(st.GravityID), common.Hash(genesis.GravityID))
	}
	return st, nil
}

// Describe is a helper for logging a state
func Describe(st *bridge.State) []zap.Field {
	return []zap.Field{
		zap.Stringer("checkpoint", st.Checkpoint),
		zap.Uint64("valsetNonce", st.ValsetNonce),
		zap.Stringer("threshold", st.Threshold),
		zap.Uint64("powerScale", st.PowerScale),
		zap.Int("assets", len(st.LastBatchNonces)),
		zap.Uint64("eventNonce", st.LastEventNonce),
	}
}
