// Package paystack talks to the Paystack transactions and refunds API.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway transaction statuses reported by Paystack.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusPending   = "pending"
	StatusOngoing   = "ongoing"
)

// Client is the subset of the Paystack API used by the payment provider.
type Client interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (Initialization, error)
	VerifyTransaction(ctx context.Context, reference string) (Transaction, error)
	CreateRefund(ctx context.Context, req RefundRequest) (Refund, error)
}

// InitializeRequest opens a transaction. Amount is in subunits.
type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency,omitempty"`
	Reference   string         `json:"reference,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Initialization is the data returned by /transaction/initialize.
type Initialization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Customer is the payer attached to a transaction.
type Customer struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code"`
	Phone        string `json:"phone"`
}

// Authorization describes the reusable card or channel authorisation.
type Authorization struct {
	AuthorizationCode string `json:"authorization_code"`
	Bin               string `json:"bin"`
	Last4             string `json:"last4"`
	ExpMonth          string `json:"exp_month"`
	ExpYear           string `json:"exp_year"`
	Channel           string `json:"channel"`
	CardType          string `json:"card_type"`
	Bank              string `json:"bank"`
	CountryCode       string `json:"country_code"`
	Brand             string `json:"brand"`
	Reusable          bool   `json:"reusable"`
}

// Transaction is the verified state of a transaction. Amount and Fees are in subunits.
type Transaction struct {
	ID              int64          `json:"id"`
	Domain          string         `json:"domain"`
	Status          string         `json:"status"`
	Reference       string         `json:"reference"`
	Amount          int64          `json:"amount"`
	Message         string         `json:"message"`
	GatewayResponse string         `json:"gateway_response"`
	PaidAt          string         `json:"paid_at"`
	CreatedAt       string         `json:"created_at"`
	Channel         string         `json:"channel"`
	Currency        string         `json:"currency"`
	IPAddress       string         `json:"ip_address"`
	Fees            int64          `json:"fees"`
	Metadata        any            `json:"metadata"`
	Customer        Customer       `json:"customer"`
	Authorization   *Authorization `json:"authorization"`
}

// RefundRequest asks for a full or partial refund. A zero Amount refunds the
// whole transaction.
type RefundRequest struct {
	Transaction  string `json:"transaction"`
	Amount       int64  `json:"amount,omitempty"`
	Currency     string `json:"currency,omitempty"`
	CustomerNote string `json:"customer_note,omitempty"`
	MerchantNote string `json:"merchant_note,omitempty"`
}

// Refund is the data returned by /refund.
type Refund struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// APIError is returned when Paystack rejects a call or cannot be reached.
// StatusCode is zero for transport failures.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Raw        json.RawMessage
	Err        error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "request failed"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("paystack %s: %s (status %d)", e.Operation, msg, e.StatusCode)
	}
	return fmt.Sprintf("paystack %s: %s", e.Operation, msg)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
