// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luxfi/gravity"
	"github.com/luxfi/gravity/bridge"
	"github.com/luxfi/gravity/settlement"
)

const (
	RotatePath         = "/rotate"
	BatchPath          = "/batch"
	StatePath          = "/state"
	BatchNoncePath     = "/state/batch-nonce/{asset}"
	EventsPath         = "/events"
	HealthPath         = "/health"
	MetricsPath        = "/metrics"
	defaultCallTimeout = 30 * time.Second
	maxRequestBytes    = 4 << 20
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int32  `json:"code"`
}

type StateResponse struct {
	GravityID       common.Hash               `json:"gravityId"`
	Checkpoint      common.Hash               `json:"checkpoint"`
	ValsetNonce     uint64                    `json:"valsetNonce"`
	Threshold       gravity.Threshold         `json:"threshold"`
	PowerScale      uint64                    `json:"powerScale"`
	LastBatchNonces map[common.Address]uint64 `json:"lastBatchNonces"`
	LastEventNonce  uint64                    `json:"lastEventNonce"`
}

type BatchNonceResponse struct {
	Asset common.Address `json:"asset"`
	Nonce uint64         `json:"nonce"`
}

type EventResponse struct {
	Name  string       `json:"name"`
	Event bridge.Event `json:"event"`
}

// NewHandler routes every endpoint of the service
func NewHandler(
	logger log.Logger,
	service *Service,
	gatherer prometheus.Gatherer,
	checkFunc func(context.Context) error,
) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+RotatePath, rotateHandler(logger, service))
	mux.Handle("POST "+BatchPath, batchHandler(logger, service))
	mux.Handle("GET "+StatePath, stateHandler(logger, service))
	mux.Handle("GET "+BatchNoncePath, batchNonceHandler(logger, service))
	mux.Handle("GET "+EventsPath, eventsHandler(logger, service))
	mux.Handle(HealthPath, healthHandler(checkFunc))
	mux.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func writeJSONError(
	logger log.Logger,
	w http.ResponseWriter,
	httpStatusCode int,
	errorMsg string,
	code int32,
) {
	resp, err := json.Marshal(
		ErrorResponse{
			Error: errorMsg,
			Code:  code,
		},
	)
	if err != nil {
		msg := "Error marshalling JSON error response"
		logger.Error(msg, zap.Error(err))
		resp = []byte(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)

	_, err = w.Write(resp)
	if err != nil {
		logger.Error("Error writing error response", zap.Error(err))
	}
}

func writeJSON(logger log.Logger, w http.ResponseWriter, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		msg := "Failed to marshal response"
		logger.Error(msg, zap.Error(err))
		writeJSONError(logger, w, http.StatusInternalServerError, msg, 0)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		logger.Error("Error writing response", zap.Error(err))
	}
}

// writeTransitionError maps a transition error to a status: malformed input
// is 400, a rejected transition is 409, anything else is 500.
func writeTransitionError(logger log.Logger, w http.ResponseWriter, err error) {
	code := gravity.CodeOf(err)
	switch {
	case errors.Is(err, gravity.ErrLengthMismatch),
		errors.Is(err, gravity.ErrMalformedSignature),
		errors.Is(err, gravity.ErrMalformedValidatorSet),
		errors.Is(err, gravity.ErrMalformedBatch):
		writeJSONError(logger, w, http.StatusBadRequest, err.Error(), code)
	case code != 0, errors.Is(err, settlement.ErrInsufficientFunds):
		writeJSONError(logger, w, http.StatusConflict, err.Error(), code)
	default:
		logger.Error("Transition failed", zap.Error(err))
		writeJSONError(logger, w, http.StatusInternalServerError, err.Error(), code)
	}
}

func decodeBody(logger log.Logger, w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		msg := "Could not decode request body"
		logger.Warn(msg, zap.Error(err))
		writeJSONError(logger, w, http.StatusBadRequest, msg, 0)
		return false
	}
	return true
}

func rotateHandler(logger log.Logger, service *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bridge.RotateRequest
		if !decodeBody(logger, w, r, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), defaultCallTimeout)
		defer cancel()

		if err := service.Rotate(ctx, &req); err != nil {
			writeTransitionError(logger, w, err)
			return
		}
		writeJSON(logger, w, stateResponse(service.State()))
	})
}

func batchHandler(logger log.Logger, service *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bridge.BatchRequest
		if !decodeBody(logger, w, r, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), defaultCallTimeout)
		defer cancel()

		if err := service.SettleBatch(ctx, &req); err != nil {
			writeTransitionError(logger, w, err)
			return
		}
		writeJSON(logger, w, BatchNonceResponse{
			Asset: req.Asset,
			Nonce: service.LastBatchNonce(req.Asset),
		})
	})
}

func stateHandler(logger log.Logger, service *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(logger, w, stateResponse(service.State()))
	})
}

func batchNonceHandler(logger log.Logger, service *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("asset")
		if !common.IsHexAddress(raw) {
			msg := "Invalid asset address"
			logger.Warn(msg, zap.String("asset", raw))
			writeJSONError(logger, w, http.StatusBadRequest, msg, 0)
			return
		}
		asset := common.HexToAddress(raw)
		writeJSON(logger, w, BatchNonceResponse{
			Asset: asset,
			Nonce: service.LastBatchNonce(asset),
		})
	})
}

func eventsHandler(logger log.Logger, service *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var since uint64
		if raw := r.URL.Query().Get("since"); raw != "" {
			var err error
			since, err = strconv.ParseUint(raw, 10, 64)
			if err != nil {
				msg := "Invalid since parameter"
				logger.Warn(msg, zap.String("since", raw))
				writeJSONError(logger, w, http.StatusBadRequest, msg, 0)
				return
			}
		}
		events := service.Events(since)
		resp := make([]EventResponse, len(events))
		for i, e := range events {
			resp[i] = EventResponse{Name: e.Name(), Event: e}
		}
		writeJSON(logger, w, resp)
	})
}

func healthHandler(checkFunc func(context.Context) error) http.Handler {
	healthChecker := health.NewChecker(
		health.WithCheck(health.Check{
			Name:  "gravity-health",
			Check: checkFunc,
		}),
	)
	return health.NewHandler(healthChecker)
}

func stateResponse(st *bridge.State) StateResponse {
	return StateResponse{
		GravityID:       common.Hash(st.GravityID),
		Checkpoint:      st.Checkpoint,
		ValsetNonce:     st.ValsetNonce,
		Threshold:       st.Threshold,
		PowerScale:      st.PowerScale,
		LastBatchNonces: st.LastBatchNonces,
		LastEventNonce:  st.LastEventNonce,
	}
}
