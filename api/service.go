// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/gravity/bridge"
	"github.com/luxfi/gravity/metrics"
)

// Service hosts the bridge. Transitions are serialized with a single lock,
// which is the only ordering the bridge itself relies on.
type Service struct {
	lock    sync.Mutex
	bridge  *bridge.Bridge
	state   *bridge.State
	events  *bridge.EventLog
	metrics *metrics.GravityMetrics
	log     log.Logger
}

func NewService(
	logger log.Logger,
	m *metrics.GravityMetrics,
	b *bridge.Bridge,
	st *bridge.State,
	events *bridge.EventLog,
) *Service {
	m.ValsetNonce.Set(float64(st.ValsetNonce))
	return &Service{
		bridge:  b,
		state:   st,
		events:  events,
		metrics: m,
		log:     logger,
	}
}

// Rotate decodes and applies a rotation
func (s *Service) Rotate(ctx context.Context, req *bridge.RotateRequest) error {
	newSet, currentSet, sigs, err := req.Decode()
	if err != nil {
		s.metrics.Rejected(metrics.OperationRotate, err)
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	startTime := time.Now()
	err = s.bridge.RotateValidatorSet(ctx, s.state, newSet, currentSet, sigs)
	s.metrics.TransitionLatencyMS.WithLabelValues(metrics.OperationRotate).Set(
		float64(time.Since(startTime).Milliseconds()),
	)
	if err != nil {
		s.metrics.Rejected(metrics.OperationRotate, err)
		s.log.Debug("Rejected rotation", zap.Uint64("valsetNonce", newSet.Nonce), zap.Error(err))
		return err
	}
	s.metrics.RotationsCount.Inc()
	s.metrics.ValsetNonce.Set(float64(s.state.ValsetNonce))
	return nil
}

// SettleBatch decodes and settles a batch
func (s *Service) SettleBatch(ctx context.Context, req *bridge.BatchRequest) error {
	batch, signerSet, sigs, err := req.Decode()
	if err != nil {
		s.metrics.Rejected(metrics.OperationBatch, err)
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	startTime := time.Now()
	err = s.bridge.SettleBatch(ctx, s.state, batch, signerSet, sigs, req.Relayer)
	s.metrics.TransitionLatencyMS.WithLabelValues(metrics.OperationBatch).Set(
		float64(time.Since(startTime).Milliseconds()),
	)
	if err != nil {
		s.metrics.Rejected(metrics.OperationBatch, err)
		s.log.Debug("Rejected batch",
			zap.Stringer("asset", batch.Asset),
			zap.Uint64("batchNonce", batch.Nonce),
			zap.Error(err),
		)
		return err
	}
	s.metrics.BatchesCount.Inc()
	return nil
}

// State returns a copy of the current state
func (s *Service) State() *bridge.State {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state.Clone()
}

// LastBatchNonce returns the last executed batch nonce of asset
func (s *Service) LastBatchNonce(asset common.Address) uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state.LastBatchNonce(asset)
}

// Events returns the events after nonce
func (s *Service) Events(nonce uint64) []bridge.Event {
	if s.events == nil {
		return nil
	}
	return s.events.Since(nonce)
}
