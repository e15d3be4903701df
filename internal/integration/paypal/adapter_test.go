package paypal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type AdapterSuite struct {
	suite.Suite
	server     *httptest.Server
	tokenCalls int32
	handler    http.HandlerFunc
	adapter    *Adapter
}

func TestAdapter(t *testing.T) {
	suite.Run(t, new(AdapterSuite))
}

func (s *AdapterSuite) SetupTest() {
	atomic.StoreInt32(&s.tokenCalls, 0)
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			atomic.AddInt32(&s.tokenCalls, 1)
			s.Equal("application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			s.True(strings.HasPrefix(r.Header.Get("Authorization"), "Basic "))
			_, _ = w.Write([]byte(`{"access_token":"A21","expires_in":3600}`))
			return
		}
		s.Equal("Bearer A21", r.Header.Get("Authorization"))
		s.handler(w, r)
	}))

	client := httpclient.NewDefaultClient(httpclient.ClientConfig{
		Timeout:      time.Second,
		RetryMax:     0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	}, nil)

	var err error
	s.adapter, err = NewAdapter(config.PayPalConfig{
		BaseURL:      s.server.URL + "/",
		ClientID:     "client",
		ClientSecret: "secret",
	}, client, logger.NewNopLogger())
	s.Require().NoError(err)
}

func (s *AdapterSuite) TearDownTest() {
	s.server.Close()
}

func (s *AdapterSuite) TestParseSaleCompleted() {
	payload := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.SALE.COMPLETED",
		"resource_type": "sale",
		"create_time": "2024-03-01T10:00:05Z",
		"resource": {
			"id": "SALE-1",
			"state": "completed",
			"amount": {"total": "19.99", "currency": "USD"},
			"create_time": "2024-03-01T10:00:00Z",
			"billing_agreement_id": "I-PROFILE"
		}
	}`)

	evt, err := s.adapter.ParseEvent(context.Background(), payload, http.Header{})
	s.Require().NoError(err)
	s.Equal(types.GatewayEventSale, evt.Kind())
	s.Equal(types.SaleStateCompleted, evt.State())
	s.Equal("SALE-1", evt.TransactionID())
	s.Equal("I-PROFILE", evt.ProfileID())
	s.True(decimal.RequireFromString("19.99").Equal(evt.Amount()))
	s.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), evt.Timestamp().UTC())
}

func (s *AdapterSuite) TestParseRefundUsesSaleID() {
	payload := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.SALE.REFUNDED",
		"resource_type": "refund",
		"resource": {"id": "REF-1", "state": "completed", "sale_id": "SALE-1", "amount": {"total": "-19.99", "currency": "USD"}}
	}`)

	evt, err := s.adapter.ParseEvent(context.Background(), payload, http.Header{})
	s.Require().NoError(err)
	s.Equal(types.GatewayEventSaleRefunded, evt.Kind())
	s.Equal("SALE-1", evt.TransactionID())
	s.True(decimal.RequireFromString("19.99").Equal(evt.Amount()))
}

func (s *AdapterSuite) TestParseSubscriptionEvents() {
	tests := map[string]types.GatewayEventKind{
		"BILLING.SUBSCRIPTION.ACTIVATED":      types.GatewayEventSubscriptionActivated,
		"BILLING.SUBSCRIPTION.CANCELLED":      types.GatewayEventSubscriptionCancelled,
		"BILLING.SUBSCRIPTION.SUSPENDED":      types.GatewayEventSubscriptionSuspended,
		"BILLING.SUBSCRIPTION.PAYMENT.FAILED": types.GatewayEventSubscriptionPaymentFailed,
		"BILLING.SUBSCRIPTION.EXPIRED":        types.GatewayEventSubscriptionExpired,
		"CUSTOMER.DISPUTE.CREATED":            types.GatewayEventUnknown,
	}
	for eventType, kind := range tests {
		payload := []byte(`{"id":"WH-3","event_type":"` + eventType + `","resource_type":"subscription","resource":{"id":"I-PROFILE","status":"ACTIVE"}}`)
		evt, err := s.adapter.ParseEvent(context.Background(), payload, http.Header{})
		s.Require().NoError(err, eventType)
		s.Equal(kind, evt.Kind(), eventType)
		if kind != types.GatewayEventUnknown {
			s.Equal("I-PROFILE", evt.ProfileID(), eventType)
		}
	}
}

func (s *AdapterSuite) TestParseEventVerifiesSignature() {
	s.adapter.cfg.WebhookID = "WH-ID"
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/v1/notifications/verify-webhook-signature", r.URL.Path)
		var req verifyRequest
		body, _ := io.ReadAll(r.Body)
		s.Require().NoError(json.Unmarshal(body, &req))
		s.Equal("WH-ID", req.WebhookID)
		status := "FAILURE"
		if req.TransmissionSig == "good" {
			status = "SUCCESS"
		}
		_, _ = w.Write([]byte(`{"verification_status":"` + status + `"}`))
	}

	payload := []byte(`{"id":"WH-4","event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource":{"id":"I-PROFILE"}}`)
	headers := http.Header{}
	for _, h := range transmissionHeaders {
		headers.Set(h, "x")
	}

	headers.Set("PAYPAL-TRANSMISSION-SIG", "good")
	_, err := s.adapter.ParseEvent(context.Background(), payload, headers)
	s.NoError(err)

	headers.Set("PAYPAL-TRANSMISSION-SIG", "bad")
	_, err = s.adapter.ParseEvent(context.Background(), payload, headers)
	s.True(ierr.IsValidation(err))

	_, err = s.adapter.ParseEvent(context.Background(), payload, http.Header{})
	s.True(ierr.IsValidation(err))

	// token fetched once and reused
	s.Equal(int32(1), atomic.LoadInt32(&s.tokenCalls))
}

func (s *AdapterSuite) TestAttemptCharge() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/v1/billing/subscriptions/I-PROFILE/capture", r.URL.Path)
		var req captureRequest
		body, _ := io.ReadAll(r.Body)
		s.Require().NoError(json.Unmarshal(body, &req))
		s.Equal("OUTSTANDING_BALANCE", req.CaptureType)
		s.Equal("19.99", req.Amount.Value)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"TXN-9","status":"COMPLETED","amount":{"currency_code":"USD","value":"19.99"}}`))
	}

	res, err := s.adapter.AttemptCharge(context.Background(), gateway.ChargeRequest{
		SubscriptionID: "sub_1",
		ProfileID:      "I-PROFILE",
		Amount:         decimal.RequireFromString("19.99"),
		Currency:       "usd",
	})
	s.Require().NoError(err)
	s.Equal("TXN-9", res.TransactionID)
	s.Equal("USD", res.Currency)
	s.True(decimal.RequireFromString("19.99").Equal(res.Amount))
}

func (s *AdapterSuite) TestAttemptChargeDeclined() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"balance"}`))
	}

	_, err := s.adapter.AttemptCharge(context.Background(), gateway.ChargeRequest{
		ProfileID: "I-PROFILE",
		Amount:    decimal.NewFromInt(10),
		Currency:  "USD",
	})
	s.True(ierr.IsGateway(err))
}

func (s *AdapterSuite) TestCancelSubscription() {
	var called int32
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&called, 1)
		s.Equal("/v1/billing/subscriptions/I-PROFILE/cancel", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}

	s.NoError(s.adapter.CancelSubscription(context.Background(), "I-PROFILE"))
	s.Equal(int32(1), atomic.LoadInt32(&called))
}
