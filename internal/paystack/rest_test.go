package paystack_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paystack-provider/internal/paystack"
	"github.com/noah-isme/paystack-provider/internal/resilience"
)

func newREST(t *testing.T, handler http.HandlerFunc) *paystack.REST {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return paystack.NewREST("sk_test_123", paystack.Options{
		BaseURL: srv.URL,
		Timeout: time.Second,
		Logger:  zerolog.Nop(),
	})
}

func TestInitializeTransactionSendsSubunitsAndDecodesEnvelope(t *testing.T) {
	client := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ada@example.com", body["email"])
		require.EqualValues(t, 250099, body["amount"])
		require.Equal(t, "NGN", body["currency"])
		require.Equal(t, "sess_1", body["reference"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"sess_1"}}`)
	})

	out, err := client.InitializeTransaction(context.Background(), paystack.InitializeRequest{
		Email:     "ada@example.com",
		Amount:    250099,
		Currency:  "NGN",
		Reference: "sess_1",
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.paystack.com/abc", out.AuthorizationURL)
	require.Equal(t, "abc", out.AccessCode)
	require.Equal(t, "sess_1", out.Reference)
}

func TestVerifyTransactionDecodesNullableFields(t *testing.T) {
	client := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/ref_1", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":true,"message":"Verification successful","data":{
			"id":4099260516,"status":"abandoned","reference":"ref_1","amount":40333,
			"gateway_response":"The transaction was not completed","paid_at":null,
			"channel":"card","currency":"NGN","fees":null,"metadata":"",
			"customer":{"id":1,"email":"ada@example.com","phone":null},
			"authorization":{}}}`)
	})

	txn, err := client.VerifyTransaction(context.Background(), "ref_1")
	require.NoError(t, err)
	require.Equal(t, int64(4099260516), txn.ID)
	require.Equal(t, paystack.StatusAbandoned, txn.Status)
	require.Equal(t, int64(40333), txn.Amount)
	require.Empty(t, txn.PaidAt)
	require.Equal(t, "ada@example.com", txn.Customer.Email)
}

func TestGatewayRejectionSurfacesAPIError(t *testing.T) {
	client := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status":false,"message":"Transaction reference not found"}`)
	})

	_, err := client.VerifyTransaction(context.Background(), "missing")
	var apiErr *paystack.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "verify", apiErr.Operation)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "Transaction reference not found", apiErr.Message)
	require.JSONEq(t, `{"status":false,"message":"Transaction reference not found"}`, string(apiErr.Raw))
}

func TestStatusFalseWithOKIsAnError(t *testing.T) {
	client := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":false,"message":"Invalid key"}`)
	})

	_, err := client.CreateRefund(context.Background(), paystack.RefundRequest{Transaction: "123"})
	var apiErr *paystack.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusOK, apiErr.StatusCode)
	require.Contains(t, apiErr.Error(), "Invalid key")
}

func TestNonJSONResponseKeepsRawPayload(t *testing.T) {
	client := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := client.VerifyTransaction(context.Background(), "ref")
	var apiErr *paystack.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.JSONEq(t, `"<html>bad gateway</html>"`, string(apiErr.Raw))
}

func TestRefundOmitsZeroAmount(t *testing.T) {
	client := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasAmount := body["amount"]
		require.False(t, hasAmount)
		require.Equal(t, "T1", body["transaction"])
		_, _ = io.WriteString(w, `{"status":true,"message":"Refund has been queued for processing","data":{"id":7,"status":"pending","amount":5000,"currency":"NGN"}}`)
	})

	refund, err := client.CreateRefund(context.Background(), paystack.RefundRequest{Transaction: "T1", Currency: "NGN"})
	require.NoError(t, err)
	require.Equal(t, int64(7), refund.ID)
	require.Equal(t, int64(5000), refund.Amount)
}

func TestMissingReferenceSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	client := newREST(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.VerifyTransaction(context.Background(), "  ")
	require.Error(t, err)
	_, err = client.CreateRefund(context.Background(), paystack.RefundRequest{})
	require.Error(t, err)
	require.Zero(t, calls.Load())
}

func TestOpenBreakerReturnsTransportAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"status":false,"message":"down"}`)
	}))
	t.Cleanup(srv.Close)
	client := paystack.NewREST("sk", paystack.Options{
		BaseURL:      srv.URL,
		MinRequests:  1,
		FailureRatio: 0.5,
		OpenFor:      time.Minute,
		Logger:       zerolog.Nop(),
	})

	_, err := client.VerifyTransaction(context.Background(), "ref")
	require.Error(t, err)

	_, err = client.VerifyTransaction(context.Background(), "ref")
	var apiErr *paystack.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Zero(t, apiErr.StatusCode)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
}
