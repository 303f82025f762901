package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/paystack-provider/internal/common"
	"github.com/noah-isme/paystack-provider/internal/obs"
)

// ActionSink receives the action derived from an accepted webhook.
type ActionSink interface {
	HandleWebhookAction(ctx context.Context, res WebhookActionResult) error
}

// Webhook serves the Paystack callback route: signature verification,
// replay suppression and dispatch.
type Webhook struct {
	Provider  Provider
	Replay    *redis.Client
	ReplayTTL time.Duration
	Sink      ActionSink
	Logger    zerolog.Logger
}

// Status answers GET probes from the Paystack dashboard.
func (h Webhook) Status(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{
		"message":   "Paystack plugin is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Handle processes a Paystack webhook delivery.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	log := h.logger(r.Context())
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	if !h.Provider.VerifyWebhookSignature(body, r.Header.Get(SignatureHeader)) {
		rejected("signature")
		log.Warn().Msg("webhook signature mismatch")
		common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "Invalid signature", nil)
		return
	}

	ctx := r.Context()
	var replayKey string
	if h.Replay != nil && h.ReplayTTL > 0 {
		replayKey = fmt.Sprintf("wh:%s:%s", ProviderID, common.Sha256Hex(body))
		fresh, err := h.Replay.SetNX(ctx, replayKey, "1", h.ReplayTTL).Result()
		if err != nil {
			log.Error().Err(err).Msg("webhook replay store unavailable")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !fresh {
			rejected("replay")
			log.Info().Str("key", replayKey).Msg("duplicate webhook delivery")
			common.JSON(w, http.StatusOK, map[string]any{"message": "Webhook already processed"})
			return
		}
	}

	env, parseErr := ParseWebhook(body)
	if parseErr == nil {
		obs.Annotate(ctx, "paystack_event", env.Event)
		obs.Annotate(ctx, "reference", env.Reference())
		logEvent(log, env)
	} else {
		log.Warn().Err(parseErr).Msg("malformed webhook payload")
	}

	res := h.Provider.GetWebhookActionAndData(ctx, WebhookInput{RawData: body, Headers: r.Header})
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(eventLabel(env.Event), string(res.Action)).Inc()
	}

	if h.Sink != nil {
		if err := h.Sink.HandleWebhookAction(ctx, res); err != nil {
			log.Error().Err(err).Str("action", string(res.Action)).Msg("webhook action sink failed")
			if replayKey != "" {
				_ = h.Replay.Del(context.WithoutCancel(ctx), replayKey).Err()
			}
			common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_PROCESSING_FAILED", "Webhook processing failed", nil)
			return
		}
	}

	common.JSON(w, http.StatusOK, map[string]any{
		"message": "Webhook processed successfully",
		"action":  res.Action,
	})
}

func (h Webhook) logger(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return h.Logger
}

func logEvent(log zerolog.Logger, env WebhookEnvelope) {
	ev := log.Info().Str("event", env.Event).Str("reference", env.Reference())
	switch env.Event {
	case EventChargeSuccess:
		ev.Str("amount", env.Amount().String()).Str("customer", env.CustomerEmail()).Msg("payment successful")
	case EventChargeFailed:
		ev.Msg("payment failed")
	case EventTransferSuccess:
		ev.Msg("transfer successful")
	case EventTransferFailed:
		ev.Msg("transfer failed")
	default:
		ev.Msg("unhandled webhook event")
	}
}

func eventLabel(event string) string {
	switch event {
	case EventChargeSuccess, EventChargeFailed, EventTransferSuccess, EventTransferFailed:
		return event
	case "":
		return "none"
	default:
		return "other"
	}
}

func rejected(reason string) {
	if obs.WebhookRejectedTotal != nil {
		obs.WebhookRejectedTotal.WithLabelValues(reason).Inc()
	}
}
