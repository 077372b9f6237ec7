package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zip-routing-api-go/internal/api/middleware"
	"zip-routing-api-go/internal/marketcall"
	"zip-routing-api-go/internal/routing"
)

type stubBidder struct {
	result    *marketcall.BidResult
	err       error
	calls     int
	lastOffer string
}

func (s *stubBidder) PlaceBid(ctx context.Context, offerID, callerID, zipCode string) (*marketcall.BidResult, error) {
	s.calls++
	s.lastOffer = offerID
	return s.result, s.err
}

func newHandlerEngine(t *testing.T) *routing.Engine {
	t.Helper()
	registry, err := routing.NewRegistry([]routing.TierConfig{
		{
			ID:      "tier_1",
			OfferID: "11558",
			// Always open so handler tests are not time-of-day dependent
			Hours:           routing.BusinessHours{StartHour: 0, EndHour: 23, Timezone: "UTC"},
			MaxCallsPerHour: 1000,
			Fallback:        "tier_2",
		},
		{
			ID:              "tier_2",
			OfferID:         "22222",
			Hours:           routing.BusinessHours{StartHour: 0, EndHour: 23, Timezone: "UTC"},
			MaxCallsPerHour: 1000,
		},
	})
	require.NoError(t, err)

	index := routing.NewZipIndex(registry)
	index.Load([]routing.ZipRecord{{Zip: "07004", Tier: "tier_1"}})

	return routing.NewEngine(registry, index, 100, zap.NewNop())
}

func postCallEvent(t *testing.T, h *CallHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/call-event", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func TestCallHandlerValidation(t *testing.T) {
	engine := newHandlerEngine(t)
	bidder := &stubBidder{result: &marketcall.BidResult{ID: "bid-1", Raw: []byte(`{}`)}}
	h := NewCallHandler(engine, bidder, nil, zap.NewNop())

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{name: "invalid json", body: `{invalid}`, expectedStatus: http.StatusBadRequest},
		{name: "missing caller_id", body: `{"zip_code":"07004"}`, expectedStatus: http.StatusBadRequest},
		{name: "missing zip_code", body: `{"caller_id":"+15551234567"}`, expectedStatus: http.StatusBadRequest},
		{name: "malformed zip_code", body: `{"caller_id":"+15551234567","zip_code":"070A4"}`, expectedStatus: http.StatusBadRequest},
		{name: "zip too long", body: `{"caller_id":"+15551234567","zip_code":"123456"}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCallEvent(t, h, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	assert.Zero(t, bidder.calls, "validation failures never reach the bid API")
	assert.Zero(t, engine.Analytics().TotalCalls, "validation failures are not call events")
}

func TestCallHandlerRoutedSuccess(t *testing.T) {
	engine := newHandlerEngine(t)
	bidder := &stubBidder{result: &marketcall.BidResult{ID: "bid-1", Raw: []byte(`{"id":"bid-1"}`)}}
	h := NewCallHandler(engine, bidder, nil, zap.NewNop())

	w := postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":"07004"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, bidder.calls)
	assert.Equal(t, "11558", bidder.lastOffer)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["status"], "TIER_1")
	assert.Equal(t, "07004", resp["zip_code"])
	assert.Equal(t, "bid-1", resp["external_call_id"])

	snap := engine.Analytics()
	assert.Equal(t, int64(1), snap.TotalCalls)
	assert.Equal(t, int64(1), snap.Successful)

	recent := engine.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, routing.StatusSuccess, recent[0].Status)
	assert.Equal(t, "bid-1", recent[0].ExternalCallID)
}

func TestCallHandlerNumericZip(t *testing.T) {
	engine := newHandlerEngine(t)
	bidder := &stubBidder{result: &marketcall.BidResult{Raw: []byte(`{}`)}}
	h := NewCallHandler(engine, bidder, nil, zap.NewNop())

	// Some trackers send zip_code as a bare number; leading zeros are
	// restored by normalization.
	w := postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":7004}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, bidder.calls)
}

func TestCallHandlerUnrouted(t *testing.T) {
	engine := newHandlerEngine(t)
	bidder := &stubBidder{result: &marketcall.BidResult{Raw: []byte(`{}`)}}
	h := NewCallHandler(engine, bidder, nil, zap.NewNop())

	w := postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":"00000"}`)

	// Unrouted is a normal outcome, answered 200 with no bid placed.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, bidder.calls)
	assert.Contains(t, w.Body.String(), "no ping sent")

	snap := engine.Analytics()
	assert.Equal(t, int64(1), snap.TotalCalls)
	assert.Equal(t, int64(1), snap.Unrouted)

	recent := engine.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, routing.StatusNoTier, recent[0].Status)
}

func TestCallHandlerBidFailure(t *testing.T) {
	t.Run("api error answers 502", func(t *testing.T) {
		engine := newHandlerEngine(t)
		bidder := &stubBidder{err: errors.New("connection refused")}
		h := NewCallHandler(engine, bidder, nil, zap.NewNop())

		w := postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":"07004"}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)

		recent := engine.Recent(1)
		require.Len(t, recent, 1)
		assert.Equal(t, routing.StatusAPIError, recent[0].Status)
		assert.Equal(t, routing.TierID("tier_1"), recent[0].ChosenTier)
	})

	t.Run("decode error answers 502", func(t *testing.T) {
		engine := newHandlerEngine(t)
		bidder := &stubBidder{err: fmt.Errorf("%w: offer 11558", marketcall.ErrDecode)}
		h := NewCallHandler(engine, bidder, nil, zap.NewNop())

		w := postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":"07004"}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)

		recent := engine.Recent(1)
		require.Len(t, recent, 1)
		assert.Equal(t, routing.StatusAPIError, recent[0].Status)
		assert.Empty(t, recent[0].ExternalCallID)
	})

	t.Run("timeout answers 504", func(t *testing.T) {
		engine := newHandlerEngine(t)
		bidder := &stubBidder{err: context.DeadlineExceeded}
		h := NewCallHandler(engine, bidder, nil, zap.NewNop())

		w := postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":"07004"}`)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Equal(t, int64(1), engine.Analytics().Failed)
	})

	t.Run("decision is final, no re-route on bid failure", func(t *testing.T) {
		engine := newHandlerEngine(t)
		bidder := &stubBidder{err: errors.New("boom")}
		h := NewCallHandler(engine, bidder, nil, zap.NewNop())

		postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":"07004"}`)

		assert.Equal(t, 1, bidder.calls, "exactly one bid attempt per call event")
	})
}

type panicBidder struct{}

func (panicBidder) PlaceBid(ctx context.Context, offerID, callerID, zipCode string) (*marketcall.BidResult, error) {
	panic("bidder exploded")
}

func TestCallHandlerPanicStillRecords(t *testing.T) {
	engine := newHandlerEngine(t)
	h := NewCallHandler(engine, panicBidder{}, nil, zap.NewNop())

	panicsBefore := testutil.ToFloat64(middleware.PanicsRecoveredTotal)

	w := postCallEvent(t, h, `{"caller_id":"+15551234567","zip_code":"07004"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, panicsBefore+1, testutil.ToFloat64(middleware.PanicsRecoveredTotal))

	recent := engine.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, routing.StatusException, recent[0].Status)
	assert.Equal(t, "07004", recent[0].ZipCode)
}
