// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/gravity"
)

const (
	OperationRotate = "rotate"
	OperationBatch  = "batch"
)

type GravityMetrics struct {
	RotationsCount           prometheus.Counter
	BatchesCount             prometheus.Counter
	RejectedTransitionsCount *prometheus.CounterVec
	ValsetNonce              prometheus.Gauge
	TransitionLatencyMS      *prometheus.GaugeVec
}

func NewGravityMetrics(registerer prometheus.Registerer) *GravityMetrics {
	m := GravityMetrics{
		RotationsCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gravity_rotations_total",
				Help: "Number of successful validator set rotations",
			},
		),
		BatchesCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gravity_batches_total",
				Help: "Number of settled batches",
			},
		),
		RejectedTransitionsCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gravity_rejected_transitions_total",
				Help: "Number of rejected transitions",
			},
			[]string{"operation", "reason"},
		),
		ValsetNonce: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gravity_valset_nonce",
				Help: "Nonce of the installed validator set",
			},
		),
		TransitionLatencyMS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gravity_transition_latency_ms",
				Help: "Latency of the last transition in milliseconds",
			},
			[]string{"operation"},
		),
	}

	registerer.MustRegister(m.RotationsCount)
	registerer.MustRegister(m.BatchesCount)
	registerer.MustRegister(m.RejectedTransitionsCount)
	registerer.MustRegister(m.ValsetNonce)
	registerer.MustRegister(m.TransitionLatencyMS)

	return &m
}

// Rejected counts a failed transition under the protocol error it carries
func (m *GravityMetrics) Rejected(operation string, err error) {
	m.RejectedTransitionsCount.WithLabelValues(operation, gravity.Reason(err)).Inc()
}
