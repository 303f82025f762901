package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paystack-provider/internal/payment"
)

type recordingSink struct {
	got []payment.WebhookActionResult
	err error
}

func (s *recordingSink) HandleWebhookAction(_ context.Context, res payment.WebhookActionResult) error {
	s.got = append(s.got, res)
	return s.err
}

func newWebhook(t *testing.T, sink payment.ActionSink) (payment.Webhook, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return payment.Webhook{
		Provider:  newProvider(t, &fakeGateway{}),
		Replay:    rdb,
		ReplayTTL: time.Hour,
		Sink:      sink,
		Logger:    zerolog.Nop(),
	}, mr
}

func postWebhook(h payment.Webhook, body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/store/paystack/webhook", strings.NewReader(body))
	req.Header.Set(payment.SignatureHeader, sig)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookStatus(t *testing.T) {
	h, _ := newWebhook(t, nil)
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/store/paystack/webhook", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Paystack plugin is running", body["message"])
	require.NotEmpty(t, body["timestamp"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	sink := &recordingSink{}
	h, _ := newWebhook(t, sink)

	rec := postWebhook(h, testBody, "bad")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_SIGNATURE")
	require.Empty(t, sink.got)
}

func TestWebhookDispatchesAndSuppressesReplays(t *testing.T) {
	sink := &recordingSink{}
	h, _ := newWebhook(t, sink)

	rec := postWebhook(h, testBody, testSig)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Webhook processed successfully", body["message"])
	require.Equal(t, "authorized", body["action"])
	require.Len(t, sink.got, 1)
	require.Equal(t, "ref_1", sink.got[0].Data.SessionID)

	rec = postWebhook(h, testBody, testSig)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Webhook already processed")
	require.Len(t, sink.got, 1)
}

func TestWebhookSinkFailureReleasesReplayKey(t *testing.T) {
	sink := &recordingSink{err: errors.New("host down")}
	h, mr := newWebhook(t, sink)

	rec := postWebhook(h, testBody, testSig)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, mr.Keys())

	sink.err = nil
	rec = postWebhook(h, testBody, testSig)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.got, 2)
	require.Len(t, mr.Keys(), 1)
}

func TestWebhookReplayStoreError(t *testing.T) {
	h, mr := newWebhook(t, nil)
	mr.SetError("READONLY replica")

	rec := postWebhook(h, testBody, testSig)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "REPLAY_STORE_ERROR")
}

func TestWebhookWithoutReplayStoreHandlesTransferEvents(t *testing.T) {
	p, err := payment.NewPaystackProvider(payment.Config{SecretKey: "sk", PublicKey: "pk"}, &fakeGateway{}, zerolog.Nop())
	require.NoError(t, err)
	h := payment.Webhook{Provider: p, Logger: zerolog.Nop()}

	rec := postWebhook(h, `{"event":"transfer.success","data":{"reference":"t1"}}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"action":"not_supported"`)

	rec = postWebhook(h, `{not json`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"action":"failed"`)
}
