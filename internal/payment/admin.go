package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/paystack-provider/internal/common"
	"github.com/noah-isme/paystack-provider/internal/currency"
	"github.com/noah-isme/paystack-provider/internal/lock"
	"github.com/noah-isme/paystack-provider/internal/obs"
	"github.com/noah-isme/paystack-provider/internal/paystack"
)

// RefundLocker serialises refunds on the same transaction.
type RefundLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// AdminHandler exposes manual verification and refunds for operators.
type AdminHandler struct {
	Gateway  paystack.Client
	Provider Provider
	Locks    RefundLocker
	Logger   zerolog.Logger
	Now      func() time.Time
}

type adminReq struct {
	Action    string           `json:"action" validate:"required,oneof=verify refund"`
	Reference string           `json:"reference" validate:"required"`
	Amount    *decimal.Decimal `json:"amount"`
	Currency  string           `json:"currency"`
}

type verifyResp struct {
	Reference       string          `json:"reference"`
	Status          string          `json:"status"`
	SessionStatus   SessionStatus   `json:"session_status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaidAt          string          `json:"paid_at,omitempty"`
	GatewayResponse string          `json:"gateway_response,omitempty"`
	Timestamp       string          `json:"timestamp"`
}

// Verify handles GET /admin/paystack?reference=R.
func (h AdminHandler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		common.WriteError(w, common.BadRequest("BAD_REQUEST", "Reference is required"))
		return
	}
	obs.Annotate(r.Context(), "reference", reference)
	h.verify(r.Context(), w, reference)
}

// Action handles POST /admin/paystack.
func (h AdminHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req adminReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.BadRequest("BAD_REQUEST", "invalid body"))
		return
	}
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	req.Reference = strings.TrimSpace(req.Reference)
	if err := validate.Struct(req); err != nil {
		common.WriteError(w, adminValidationError(err))
		return
	}

	obs.Annotate(r.Context(), "reference", req.Reference)
	obs.Annotate(r.Context(), "admin_action", req.Action)
	switch req.Action {
	case "verify":
		h.verify(r.Context(), w, req.Reference)
	case "refund":
		if req.Amount == nil || !req.Amount.IsPositive() {
			common.WriteError(w, common.BadRequest("BAD_REQUEST", "Refund amount is required"))
			return
		}
		h.refund(r.Context(), w, req)
	}
}

func (h AdminHandler) verify(ctx context.Context, w http.ResponseWriter, reference string) {
	if h.Gateway == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "gateway unavailable", nil)
		return
	}
	txn, err := h.Gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		h.Logger.Error().Err(err).Str("reference", reference).Msg("admin verification failed")
		msg := GatewayMessage(err)
		if msg == "" {
			msg = "Verification failed"
		}
		common.JSONError(w, http.StatusBadGateway, ErrorCode, msg, nil)
		return
	}
	common.JSON(w, http.StatusOK, verifyResp{
		Reference:       txn.Reference,
		Status:          txn.Status,
		SessionStatus:   MapGatewayStatus(txn.Status),
		Amount:          currency.FromSubunit(txn.Amount, txn.Currency),
		Currency:        txn.Currency,
		PaidAt:          txn.PaidAt,
		GatewayResponse: txn.GatewayResponse,
		Timestamp:       h.timestamp(),
	})
}

func (h AdminHandler) refund(ctx context.Context, w http.ResponseWriter, req adminReq) {
	if h.Provider == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "provider unavailable", nil)
		return
	}
	var res RefundResult
	run := func(ctx context.Context) error {
		var err error
		res, err = h.Provider.RefundPayment(ctx, RefundInput{
			TransactionID: req.Reference,
			Amount:        *req.Amount,
			CurrencyCode:  req.Currency,
		})
		return err
	}
	var err error
	if h.Locks != nil {
		err = h.Locks.WithLock(ctx, req.Reference, time.Minute, run)
	} else {
		err = run(ctx)
	}
	if errors.Is(err, lock.ErrBusy) {
		common.JSONError(w, http.StatusConflict, "REFUND_IN_PROGRESS", "A refund for this transaction is already in progress", nil)
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Str("reference", req.Reference).Msg("admin refund failed")
		var pe *ProviderError
		msg := err.Error()
		if errors.As(err, &pe) {
			msg = pe.Message
		}
		common.JSONError(w, http.StatusBadGateway, ErrorCode, msg, nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"message":   "Refund initiated",
		"reference": req.Reference,
		"refund":    res.Data,
		"timestamp": h.timestamp(),
	})
}

func (h AdminHandler) timestamp() string {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func adminValidationError(err error) *common.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Action" && fe.Tag() == "oneof" {
				return common.BadRequest("BAD_REQUEST", "Invalid action")
			}
		}
		fe := verrs[0]
		return common.BadRequest("BAD_REQUEST", strings.ToLower(fe.Field())+" is required")
	}
	return common.BadRequest("BAD_REQUEST", err.Error())
}
