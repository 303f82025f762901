package payment

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// ProviderID identifies this provider to the host.
const ProviderID = "paystack"

// SessionStatus is the host's payment session vocabulary.
type SessionStatus string

const (
	StatusPending      SessionStatus = "pending"
	StatusRequiresMore SessionStatus = "requires_more"
	StatusAuthorized   SessionStatus = "authorized"
	StatusCaptured     SessionStatus = "captured"
	StatusCanceled     SessionStatus = "canceled"
	StatusError        SessionStatus = "error"
)

// ParseSessionStatus recognises a stored status value. Matching is exact.
func ParseSessionStatus(v string) (SessionStatus, bool) {
	switch s := SessionStatus(v); s {
	case StatusPending, StatusRequiresMore, StatusAuthorized, StatusCaptured, StatusCanceled, StatusError:
		return s, true
	default:
		return "", false
	}
}

// Customer is the subset of the host customer used to open a transaction.
type Customer struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// PaymentContext carries host-side context for initiate and update.
type PaymentContext struct {
	Customer       *Customer
	IdempotencyKey string
}

func (c PaymentContext) email() string {
	if c.Customer == nil {
		return ""
	}
	return strings.TrimSpace(c.Customer.Email)
}

// InitiateInput opens a payment session. Amount is in major units.
type InitiateInput struct {
	CurrencyCode string
	Amount       decimal.Decimal
	Data         SessionData
	Context      PaymentContext
}

// UpdateInput refreshes a payment session after the cart changed.
type UpdateInput struct {
	CurrencyCode string
	Amount       decimal.Decimal
	Data         SessionData
	Context      PaymentContext
}

// SessionResult is returned by initiate and update. Failures are reported
// through Status and Data rather than an error.
type SessionResult struct {
	ID     string
	Data   SessionData
	Status SessionStatus
}

// AuthorizeResult is returned by AuthorizePayment.
type AuthorizeResult struct {
	Status SessionStatus
	Data   SessionData
}

// RefundInput requests a refund. Amount is in major units; zero refunds the
// full transaction.
type RefundInput struct {
	TransactionID string
	Amount        decimal.Decimal
	CurrencyCode  string
	Data          SessionData
}

// RefundResult carries refund_id, refunded_amount and refunded_at.
type RefundResult struct {
	Data SessionData
}

// WebhookInput is an inbound webhook as received by the host.
type WebhookInput struct {
	Data    map[string]any
	RawData []byte
	Headers http.Header
}

// Provider is the capability set the host calls for a payment session.
type Provider interface {
	Identifier() string
	InitiatePayment(ctx context.Context, in InitiateInput) SessionResult
	UpdatePayment(ctx context.Context, in UpdateInput) SessionResult
	AuthorizePayment(ctx context.Context, data SessionData) (AuthorizeResult, error)
	CapturePayment(ctx context.Context, data SessionData) (SessionData, error)
	RefundPayment(ctx context.Context, in RefundInput) (RefundResult, error)
	CancelPayment(ctx context.Context, data SessionData) (SessionData, error)
	RetrievePayment(ctx context.Context, data SessionData) (SessionData, error)
	DeletePayment(ctx context.Context, data SessionData) (SessionData, error)
	GetPaymentStatus(ctx context.Context, data SessionData) SessionStatus
	GetWebhookActionAndData(ctx context.Context, in WebhookInput) WebhookActionResult
	VerifyWebhookSignature(rawBody []byte, signature string) bool
}
