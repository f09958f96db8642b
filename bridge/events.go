// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/gravity"
)

var (
	_ Event = (*ValsetUpdatedEvent)(nil)
	_ Event = (*BatchExecutedEvent)(nil)

	_ EventSink = (*EventLog)(nil)
	_ EventSink = noopSink{}
)

// Event is emitted after every successful transition. Event nonces start at
// 1 and increase by one per event across both kinds, so relayers can detect
// gaps.
type Event interface {
	Nonce() uint64
	Name() string
}

// ValsetUpdatedEvent records a rotation
type ValsetUpdatedEvent struct {
	EventNonce  uint64              `json:"eventNonce"`
	ValsetNonce uint64              `json:"valsetNonce"`
	Checkpoint  common.Hash         `json:"checkpoint"`
	Validators  []gravity.Validator `json:"validators"`
}

func (e *ValsetUpdatedEvent) Nonce() uint64 { return e.EventNonce }
func (*ValsetUpdatedEvent) Name() string    { return "ValsetUpdated" }

// BatchExecutedEvent records a settled batch
type BatchExecutedEvent struct {
	EventNonce uint64         `json:"eventNonce"`
	BatchNonce uint64         `json:"batchNonce"`
	Asset      common.Address `json:"asset"`
	Relayer    common.Address `json:"relayer"`
	Transfers  int            `json:"transfers"`
}

func (e *BatchExecutedEvent) Nonce() uint64 { return e.EventNonce }
func (*BatchExecutedEvent) Name() string    { return "BatchExecuted" }

// EventSink receives events after the state change they describe has been
// committed.
type EventSink interface {
	Emit(Event)
}

type noopSink struct{}

func (noopSink) Emit(Event) {}

// EventLog keeps every emitted event in memory
type EventLog struct {
	lock   sync.RWMutex
	events []Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Emit(e Event) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.events = append(l.events, e)
}

// Since returns the events with a nonce greater than nonce, oldest first
func (l *EventLog) Since(nonce uint64) []Event {
	l.lock.RLock()
	defer l.lock.RUnlock()

	var out []Event
	for _, e := range l.events {
		if e.Nonce() > nonce {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of events emitted so far
func (l *EventLog) Len() int {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return len(l.events)
}
