// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists the bridge state.
package store

import (
	"context"
	"sync"

	"github.com/luxfi/gravity/bridge"
)

var _ bridge.Store = (*MemoryStore)(nil)

// MemoryStore keeps the state in process memory. Load and Save copy, so the
// caller's State never aliases the stored one.
type MemoryStore struct {
	lock  sync.RWMutex
	state *bridge.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (*bridge.State, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.state == nil {
		return nil, bridge.ErrStateNotFound
	}
	return s.state.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, st *bridge.State) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.state = st.Clone()
	return nil
}
