package paystack_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paystack-provider/internal/paystack"
)

func TestStubLifecycle(t *testing.T) {
	ctx := context.Background()
	stub := paystack.NewStub("https://pay.local/checkout")

	opened, err := stub.InitializeTransaction(ctx, paystack.InitializeRequest{Email: "a@b.co", Amount: 1000, Reference: "ref_1"})
	require.NoError(t, err)
	require.Equal(t, "ref_1", opened.Reference)
	require.Equal(t, "https://pay.local/checkout/"+opened.AccessCode, opened.AuthorizationURL)

	txn, err := stub.VerifyTransaction(ctx, "ref_1")
	require.NoError(t, err)
	require.Equal(t, paystack.StatusSuccess, txn.Status)
	require.Equal(t, "NGN", txn.Currency)
	require.NotEmpty(t, txn.PaidAt)

	again, err := stub.VerifyTransaction(ctx, "ref_1")
	require.NoError(t, err)
	require.Equal(t, txn, again)

	refund, err := stub.CreateRefund(ctx, paystack.RefundRequest{Transaction: strconv.FormatInt(txn.ID, 10)})
	require.NoError(t, err)
	require.Equal(t, int64(1000), refund.Amount)

	_, err = stub.CreateRefund(ctx, paystack.RefundRequest{Transaction: "ref_1", Amount: 5000})
	require.Error(t, err)
}

func TestStubConfiguredStatusAndErrors(t *testing.T) {
	ctx := context.Background()
	stub := &paystack.Stub{Status: paystack.StatusAbandoned}

	_, err := stub.InitializeTransaction(ctx, paystack.InitializeRequest{Amount: 100})
	require.Error(t, err)

	opened, err := stub.InitializeTransaction(ctx, paystack.InitializeRequest{Email: "a@b.co", Amount: 100})
	require.NoError(t, err)
	txn, err := stub.VerifyTransaction(ctx, opened.Reference)
	require.NoError(t, err)
	require.Equal(t, paystack.StatusAbandoned, txn.Status)

	_, err = stub.CreateRefund(ctx, paystack.RefundRequest{Transaction: opened.Reference})
	require.Error(t, err)

	_, err = stub.VerifyTransaction(ctx, "unknown")
	require.Error(t, err)
}
