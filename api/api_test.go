// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gravity"
	"github.com/luxfi/gravity/bridge"
	"github.com/luxfi/gravity/metrics"
	"github.com/luxfi/gravity/settlement"
	"github.com/luxfi/gravity/store"
)

var (
	testGravityID = ids.ID(gravity.Bytes32("foo"))
	assetX        = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	relayer       = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

type testServer struct {
	handler http.Handler
	service *Service
	metrics *metrics.GravityMetrics
	ledger  *settlement.Ledger
	signers []gravity.Signer
	genesis *gravity.ValidatorSet
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require := require.New(t)

	signers := make([]gravity.Signer, 3)
	addrs := make([]common.Address, 3)
	for i := range signers {
		sk, err := crypto.ToECDSA(common.LeftPadBytes([]byte{byte(i + 1)}, 32))
		require.NoError(err)
		signers[i] = gravity.NewSigner(sk)
		addrs[i] = signers[i].Address()
	}
	set, err := gravity.NewValidatorSet(addrs, []uint64{3000, 3000, 4000}, 0)
	require.NoError(err)
	genesis := set.Sorted()

	st, err := bridge.NewGenesisState(
		testGravityID,
		genesis,
		gravity.Threshold{Numerator: 6666, Denominator: 10000},
		10000,
	)
	require.NoError(err)

	verifier, err := gravity.NewVerifier(16)
	require.NoError(err)
	ledger := settlement.NewLedger()
	events := bridge.NewEventLog()
	b, err := bridge.New(&bridge.Config{
		Ledger:  gravity.NewPowerLedger(verifier, false),
		Settler: ledger,
		Store:   store.NewMemoryStore(),
		Events:  events,
		Clock:   bridge.ClockFunc(func() uint64 { return 100 }),
	})
	require.NoError(err)

	registry := prometheus.NewRegistry()
	m := metrics.NewGravityMetrics(registry)
	service := NewService(log.NewNoOpLogger(), m, b, st, events)
	return &testServer{
		handler: NewHandler(log.NewNoOpLogger(), service, registry, func(context.Context) error { return nil }),
		service: service,
		metrics: m,
		ledger:  ledger,
		signers: signers,
		genesis: genesis,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) rotateRequest(t *testing.T, nonce uint64) *bridge.RotateRequest {
	t.Helper()
	newSet, err := gravity.NewValidatorSet(s.genesis.Addresses(), []uint64{2000, 4000, 4000}, nonce)
	require.NoError(t, err)
	sigs, err := gravity.SignForSet(s.genesis, gravity.Digest(testGravityID, newSet), s.signers)
	require.NoError(t, err)
	return bridge.NewRotateRequest(newSet, s.genesis, sigs)
}

func (s *testServer) batchRequest(t *testing.T, nonce uint64) *bridge.BatchRequest {
	t.Helper()
	batch, err := gravity.NewBatch(
		[]*uint256.Int{uint256.NewInt(10), uint256.NewInt(20)},
		[]common.Address{common.HexToAddress("0x1001"), common.HexToAddress("0x1002")},
		[]*uint256.Int{uint256.NewInt(1), uint256.NewInt(2)},
		nonce,
		assetX,
		1000,
	)
	require.NoError(t, err)
	sigs, err := gravity.SignForSet(s.genesis, gravity.Digest(testGravityID, batch), s.signers)
	require.NoError(t, err)
	return bridge.NewBatchRequest(batch, s.genesis, sigs, relayer)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRotate(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, RotatePath, s.rotateRequest(t, 1))
	require.Equal(http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[StateResponse](t, rec)
	require.Equal(uint64(1), resp.ValsetNonce)
	require.Equal(uint64(1), resp.LastEventNonce)
	require.Equal(common.Hash(testGravityID), resp.GravityID)

	require.InDelta(1, testutil.ToFloat64(s.metrics.RotationsCount), 0)
	require.InDelta(1, testutil.ToFloat64(s.metrics.ValsetNonce), 0)

	// replaying the same rotation is stale
	rec = s.do(t, http.MethodPost, RotatePath, s.rotateRequest(t, 1))
	require.Equal(http.StatusConflict, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	require.Equal(gravity.ErrStaleNonce.Code, errResp.Code)
	require.InDelta(1, testutil.ToFloat64(
		s.metrics.RejectedTransitionsCount.WithLabelValues(metrics.OperationRotate, gravity.Reason(gravity.ErrStaleNonce)),
	), 0)
}

func TestRotateBadRequests(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, RotatePath, "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := s.rotateRequest(t, 1)
	req.Signatures = req.Signatures[:1]
	rec = s.do(t, http.MethodPost, RotatePath, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, gravity.ErrLengthMismatch.Code, decode[ErrorResponse](t, rec).Code)

	req = s.rotateRequest(t, 1)
	req.NewValidators = nil
	req.NewPowers = nil
	rec = s.do(t, http.MethodPost, RotatePath, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, gravity.ErrMalformedValidatorSet.Code, decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, RotatePath, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSettleBatch(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)

	// custody is empty
	rec := s.do(t, http.MethodPost, BatchPath, s.batchRequest(t, 1))
	require.Equal(http.StatusConflict, rec.Code, rec.Body.String())

	require.NoError(s.ledger.Fund(assetX, uint256.NewInt(30)))
	rec = s.do(t, http.MethodPost, BatchPath, s.batchRequest(t, 1))
	require.Equal(http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(BatchNonceResponse{Asset: assetX, Nonce: 1}, decode[BatchNonceResponse](t, rec))
	require.Equal(uint256.NewInt(3), s.ledger.Balance(assetX, relayer))
	require.InDelta(1, testutil.ToFloat64(s.metrics.BatchesCount), 0)

	rec = s.do(t, http.MethodGet, "/state/batch-nonce/"+assetX.Hex(), nil)
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(uint64(1), decode[BatchNonceResponse](t, rec).Nonce)

	rec = s.do(t, http.MethodGet, "/state/batch-nonce/0x1234", nil)
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, StatePath, nil)
	require.Equal(http.StatusOK, rec.Code)
	resp := decode[StateResponse](t, rec)
	require.Equal(map[common.Address]uint64{assetX: 1}, resp.LastBatchNonces)
	require.Equal(uint64(1), resp.LastEventNonce)
}

func TestEvents(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)
	require.NoError(s.ledger.Fund(assetX, uint256.NewInt(30)))

	require.Equal(http.StatusOK, s.do(t, http.MethodPost, RotatePath, s.rotateRequest(t, 1)).Code)

	// the batch is signed by the rotated-out set, so it must be re-signed
	// under the new one
	newSet, err := gravity.NewValidatorSet(s.genesis.Addresses(), []uint64{2000, 4000, 4000}, 1)
	require.NoError(err)
	req := s.batchRequest(t, 1)
	req.SignerPowers = newSet.Powers()
	req.SignerNonce = newSet.Nonce
	require.Equal(http.StatusOK, s.do(t, http.MethodPost, BatchPath, req).Code)

	rec := s.do(t, http.MethodGet, EventsPath, nil)
	require.Equal(http.StatusOK, rec.Code)
	var events []struct {
		Name string `json:"name"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(events, 2)
	require.Equal("ValsetUpdated", events[0].Name)
	require.Equal("BatchExecuted", events[1].Name)

	rec = s.do(t, http.MethodGet, EventsPath+"?since=1", nil)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(events, 1)

	rec = s.do(t, http.MethodGet, EventsPath+"?since=x", nil)
	require.Equal(http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, HealthPath, nil)
	require.Equal(http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, MetricsPath, nil)
	require.Equal(http.StatusOK, rec.Code)
	require.True(strings.Contains(rec.Body.String(), "gravity_valset_nonce"))
}
