// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/gravity"
	"github.com/luxfi/gravity/settlement"
	"github.com/luxfi/gravity/utils"
)

// defaultRestoreTimeout bounds the retries of the save that rolls a batch
// nonce back after a failed settlement.
const defaultRestoreTimeout = 5 * time.Second

var (
	errMissingLedger  = errors.New("power ledger is required")
	errMissingSettler = errors.New("settler is required")
	errMissingStore   = errors.New("store is required")
)

// Config configures a Bridge. Events, Clock, Log and RestoreTimeout are
// optional.
type Config struct {
	Ledger         *gravity.PowerLedger
	Settler        settlement.Settler
	Store          Store
	Events         EventSink
	Clock          Clock
	Log            log.Logger
	RestoreTimeout time.Duration
}

// Bridge runs the state transitions. It holds no state of its own: the
// caller passes the State to every transition and must not run two
// transitions against the same State concurrently.
type Bridge struct {
	ledger  *gravity.PowerLedger
	settler settlement.Settler
	store   Store
	events  EventSink
	clock   Clock
	log     log.Logger

	restoreTimeout time.Duration
}

func New(cfg *Config) (*Bridge, error) {
	switch {
	case cfg.Ledger == nil:
		return nil, errMissingLedger
	case cfg.Settler == nil:
		return nil, errMissingSettler
	case cfg.Store == nil:
		return nil, errMissingStore
	}

	b := &Bridge{
		ledger:  cfg.Ledger,
		settler: cfg.Settler,
		store:   cfg.Store,
		events:  cfg.Events,
		clock:   cfg.Clock,
		log:     cfg.Log,

		restoreTimeout: cfg.RestoreTimeout,
	}
	if b.events == nil {
		b.events = noopSink{}
	}
	if b.clock == nil {
		b.clock = UnixClock
	}
	if b.log == nil {
		b.log = log.NewNoOpLogger()
	}
	if b.restoreTimeout <= 0 {
		b.restoreTimeout = defaultRestoreTimeout
	}
	return b, nil
}

// RotateValidatorSet replaces the trusted validator set with newSet.
// currentSet must be the installed set and sigs must be its members'
// signatures over newSet's checkpoint, aligned with currentSet.
//
// Every check runs before st is touched; on error st is unchanged.
func (b *Bridge) RotateValidatorSet(
	ctx context.Context,
	st *State,
	newSet *gravity.ValidatorSet,
	currentSet *gravity.ValidatorSet,
	sigs []gravity.Signature,
) error {
	if newSet.Len() == 0 {
		return fmt.Errorf("%w: empty validator set", gravity.ErrMalformedValidatorSet)
	}
	if newSet.Nonce <= st.ValsetNonce {
		return fmt.Errorf("%w: valset nonce %d, installed %d", gravity.ErrStaleNonce, newSet.Nonce, st.ValsetNonce)
	}
	if gravity.Digest(st.GravityID, currentSet) != st.Checkpoint {
		return gravity.ErrCurrentSetMismatch
	}
	if err := gravity.CheckOrdering(currentSet.Validators); err != nil {
		return err
	}

	checkpoint := gravity.Digest(st.GravityID, newSet)
	power, err := b.ledger.VerifySignatures(currentSet, checkpoint, sigs, st.Threshold, st.PowerScale)
	if err != nil {
		return err
	}
	if err := checkValidatorSet(newSet, st.Threshold, st.PowerScale); err != nil {
		return err
	}

	prev := st.Clone()
	st.Checkpoint = checkpoint
	st.ValsetNonce = newSet.Nonce
	st.LastEventNonce++
	if err := b.store.Save(ctx, st); err != nil {
		*st = *prev
		return fmt.Errorf("failed to persist rotation: %w", err)
	}

	b.events.Emit(&ValsetUpdatedEvent{
		EventNonce:  st.LastEventNonce,
		ValsetNonce: newSet.Nonce,
		Checkpoint:  checkpoint,
		Validators:  newSet.Validators,
	})
	b.log.Info("Rotated validator set",
		zap.Uint64("valsetNonce", newSet.Nonce),
		zap.Stringer("checkpoint", checkpoint),
		zap.Int("validators", newSet.Len()),
		zap.Uint64("signedPower", power),
	)
	return nil
}

// SettleBatch executes batch if the installed validator set signed it.
// signerSet must be the installed set and sigs its members' signatures over
// the batch digest, aligned with signerSet.
//
// The asset's batch nonce is advanced and saved before the settler runs. If
// settlement fails the nonce is restored, both in st and in the store.
func (b *Bridge) SettleBatch(
	ctx context.Context,
	st *State,
	batch *gravity.Batch,
	signerSet *gravity.ValidatorSet,
	sigs []gravity.Signature,
	relayer common.Address,
) error {
	if gravity.Digest(st.GravityID, signerSet) != st.Checkpoint {
		return gravity.ErrCurrentSetMismatch
	}
	if now := b.clock.Now(); now >= batch.Timeout {
		return fmt.Errorf("%w: timeout %d, now %d", gravity.ErrBatchExpired, batch.Timeout, now)
	}
	last := st.LastBatchNonce(batch.Asset)
	if batch.Nonce <= last {
		return fmt.Errorf("%w: batch nonce %d for %s, last executed %d",
			gravity.ErrStaleNonce, batch.Nonce, batch.Asset, last)
	}
	if err := gravity.CheckOrdering(signerSet.Validators); err != nil {
		return err
	}
	power, err := b.ledger.VerifySignatures(
		signerSet,
		gravity.Digest(st.GravityID, batch),
		sigs,
		st.Threshold,
		st.PowerScale,
	)
	if err != nil {
		return err
	}
	if err := batch.Verify(); err != nil {
		return err
	}

	if st.LastBatchNonces == nil {
		st.LastBatchNonces = make(map[common.Address]uint64)
	}
	prev, executed := st.LastBatchNonces[batch.Asset]
	restore := func() {
		if executed {
			st.LastBatchNonces[batch.Asset] = prev
		} else {
			delete(st.LastBatchNonces, batch.Asset)
		}
		st.LastEventNonce--
	}

	st.LastBatchNonces[batch.Asset] = batch.Nonce
	st.LastEventNonce++
	if err := b.store.Save(ctx, st); err != nil {
		restore()
		return fmt.Errorf("failed to persist batch nonce: %w", err)
	}

	if err := b.settler.Settle(ctx, batch.Asset, batch.Transfers, relayer); err != nil {
		restore()
		if saveErr := b.saveRestored(ctx, st); saveErr != nil {
			b.log.Error("Failed to restore batch nonce after settlement failure",
				zap.Stringer("asset", batch.Asset),
				zap.Uint64("batchNonce", batch.Nonce),
				zap.Error(saveErr),
			)
			return errors.Join(fmt.Errorf("failed to settle batch %d: %w", batch.Nonce, err), saveErr)
		}
		b.log.Warn("Batch settlement failed",
			zap.Stringer("asset", batch.Asset),
			zap.Uint64("batchNonce", batch.Nonce),
			zap.Error(err),
		)
		return fmt.Errorf("failed to settle batch %d: %w", batch.Nonce, err)
	}

	b.events.Emit(&BatchExecutedEvent{
		EventNonce: st.LastEventNonce,
		BatchNonce: batch.Nonce,
		Asset:      batch.Asset,
		Relayer:    relayer,
		Transfers:  len(batch.Transfers),
	})
	b.log.Info("Settled batch",
		zap.Stringer("asset", batch.Asset),
		zap.Uint64("batchNonce", batch.Nonce),
		zap.Int("transfers", len(batch.Transfers)),
		zap.Uint64("signedPower", power),
	)
	return nil
}

// saveRestored persists a rolled back state. A batch nonce left advanced in
// the store would block the batch forever after a restart, so the save is
// retried and is not cut short by the caller's cancellation.
func (b *Bridge) saveRestored(ctx context.Context, st *State) error {
	restoreCtx := context.WithoutCancel(ctx)
	return utils.WithRetriesTimeout(b.log, func() error {
		return b.store.Save(restoreCtx, st)
	}, b.restoreTimeout)
}
