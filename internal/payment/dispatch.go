package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Paystack webhook events.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

// WebhookAction is the host-facing outcome of a webhook.
type WebhookAction string

const (
	ActionAuthorized   WebhookAction = "authorized"
	ActionFailed       WebhookAction = "failed"
	ActionNotSupported WebhookAction = "not_supported"
)

// WebhookActionData identifies the session a webhook refers to. Amount is the
// subunit value reported by Paystack.
type WebhookActionData struct {
	SessionID string          `json:"session_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// MarshalJSON writes amount as a JSON number.
func (d WebhookActionData) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SessionID string      `json:"session_id"`
		Amount    json.Number `json:"amount"`
	}{SessionID: d.SessionID, Amount: json.Number(d.Amount.String())})
}

// WebhookActionResult is the action tuple handed to the host.
type WebhookActionResult struct {
	Action WebhookAction      `json:"action"`
	Data   *WebhookActionData `json:"data,omitempty"`
}

// WebhookEnvelope is the decoded webhook body.
type WebhookEnvelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// Reference returns data.reference.
func (e WebhookEnvelope) Reference() string {
	return SessionData(e.Data).String("reference")
}

// Amount returns data.amount, zero when absent.
func (e WebhookEnvelope) Amount() decimal.Decimal {
	amount, _ := SessionData(e.Data).Decimal("amount")
	return amount
}

// CustomerEmail returns data.customer.email when present.
func (e WebhookEnvelope) CustomerEmail() string {
	customer, _ := e.Data["customer"].(map[string]any)
	return SessionData(customer).String("email")
}

// ParseWebhook decodes a raw webhook body. Numbers are kept exact.
func ParseWebhook(raw []byte) (WebhookEnvelope, error) {
	var env WebhookEnvelope
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, errors.New("empty webhook body")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return env, fmt.Errorf("decode webhook: %w", err)
	}
	return env, nil
}

// DispatchEvent maps an event to the host action. Unknown events are
// not_supported; charge events without a data object yield failed.
func DispatchEvent(event string, data map[string]any) WebhookActionResult {
	var action WebhookAction
	switch event {
	case EventChargeSuccess:
		action = ActionAuthorized
	case EventChargeFailed:
		action = ActionFailed
	default:
		return WebhookActionResult{Action: ActionNotSupported}
	}
	if data == nil {
		return WebhookActionResult{Action: ActionFailed}
	}
	env := WebhookEnvelope{Event: event, Data: data}
	return WebhookActionResult{
		Action: action,
		Data: &WebhookActionData{
			SessionID: env.Reference(),
			Amount:    env.Amount(),
		},
	}
}

// DispatchRaw parses and dispatches a raw body. It never fails: malformed
// input, or a panic while mapping, yields the failed action with no data.
func DispatchRaw(raw []byte) (res WebhookActionResult) {
	defer func() {
		if recover() != nil {
			res = WebhookActionResult{Action: ActionFailed}
		}
	}()
	env, err := ParseWebhook(raw)
	if err != nil {
		return WebhookActionResult{Action: ActionFailed}
	}
	return DispatchEvent(env.Event, env.Data)
}
