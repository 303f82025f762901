package events

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/noah-isme/paystack-provider/internal/payment"
)

// WebhookSink publishes authorized and failed webhook actions on the bus.
// Other actions carry no session and are dropped.
type WebhookSink struct {
	Bus *Bus
}

// HandleWebhookAction implements payment.ActionSink.
func (s WebhookSink) HandleWebhookAction(ctx context.Context, res payment.WebhookActionResult) error {
	if res.Data == nil || res.Data.SessionID == "" {
		return nil
	}
	var topic string
	switch res.Action {
	case payment.ActionAuthorized:
		topic = TopicPaymentAuthorized
	case payment.ActionFailed:
		topic = TopicPaymentFailed
	default:
		return nil
	}
	_, err := s.Bus.Emit(ctx, topic, res.Data.SessionID, map[string]any{
		"provider":   payment.ProviderID,
		"session_id": res.Data.SessionID,
		"amount":     json.Number(res.Data.Amount.String()),
		"action":     res.Action,
	})
	return err
}

// LogNotifier writes every emitted event to the logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info().
		Str("event_id", ev.ID).
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID).
		Msg("payment event emitted")
	return nil
}
