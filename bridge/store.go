// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"time"
)

// ErrStateNotFound is returned by Store.Load before genesis has been saved
var ErrStateNotFound = errors.New("bridge state not found")

// Store persists the bridge state. Save replaces the stored state as a whole.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
}

// Clock reports the current chain time that batch timeouts are compared
// against.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to a Clock
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// UnixClock measures chain time in wall clock seconds
var UnixClock Clock = ClockFunc(func() uint64 {
	return uint64(time.Now().Unix())
})
