package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/paystack-provider/internal/currency"
	"github.com/noah-isme/paystack-provider/internal/obs"
	"github.com/noah-isme/paystack-provider/internal/paystack"
)

// Config is the provider configuration supplied by the host.
type Config struct {
	SecretKey     string `validate:"required"`
	PublicKey     string `validate:"required"`
	WebhookSecret string
	CallbackURL   string `validate:"omitempty,url"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// PaystackProvider relays payment session operations to Paystack.
type PaystackProvider struct {
	cfg        Config
	client     paystack.Client
	logger     zerolog.Logger
	normalizer currency.Normalizer
	now        func() time.Time
}

var _ Provider = (*PaystackProvider)(nil)

// NewPaystackProvider validates cfg and returns a provider using client for
// gateway calls.
func NewPaystackProvider(cfg Config, client paystack.Client, logger zerolog.Logger) (*PaystackProvider, error) {
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.PublicKey = strings.TrimSpace(cfg.PublicKey)
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "required" && (fe.Field() == "SecretKey" || fe.Field() == "PublicKey") {
					return nil, errors.New("paystack secret_key and public_key are required")
				}
			}
		}
		return nil, fmt.Errorf("paystack config: %w", err)
	}
	if client == nil {
		return nil, errors.New("paystack client is required")
	}
	logger = logger.With().Str("provider", ProviderID).Logger()
	return &PaystackProvider{
		cfg:        cfg,
		client:     client,
		logger:     logger,
		normalizer: currency.Normalizer{Logger: logger},
		now:        time.Now,
	}, nil
}

// Identifier implements Provider.
func (p *PaystackProvider) Identifier() string { return ProviderID }

// InitiatePayment opens a Paystack transaction for the session.
func (p *PaystackProvider) InitiatePayment(ctx context.Context, in InitiateInput) (res SessionResult) {
	ctx, op := p.begin(ctx, "initiate")
	defer func() {
		if r := recover(); r != nil {
			res = p.errorResult(in.Data, panicError(r))
		}
		op.end(res.Status, nil)
	}()
	return p.initiate(ctx, op.log, in)
}

func (p *PaystackProvider) initiate(ctx context.Context, log zerolog.Logger, in InitiateInput) SessionResult {
	sessionID := in.Data.String("session_id")
	email := in.Context.email()
	if email == "" {
		email = in.Data.String("email")
	}
	if email == "" {
		log.Info().Str("session_id", sessionID).Msg("no customer email, deferring transaction")
		id := sessionID
		if id == "" {
			id = "pending_" + uuid.NewString()
		}
		return SessionResult{
			ID: id,
			Data: SessionData{
				"session_id": sessionID,
				"status":     string(StatusPending),
				"amount":     in.Amount.String(),
				"currency":   in.CurrencyCode,
				"public_key": p.cfg.PublicKey,
			},
			Status: StatusPending,
		}
	}

	code := currency.Normalize(in.CurrencyCode)
	if !currency.IsSupported(code) {
		msg := fmt.Sprintf("Unsupported currency: %s. Supported currencies: %s",
			in.CurrencyCode, strings.Join(currency.SupportedCodes(), ", "))
		return p.errorResult(SessionData{"session_id": sessionID}, newProviderError(msg, nil))
	}

	reference := resolveReference(in.Data)
	amount := p.normalizer.ToSubunit(in.Amount, code)
	log.Info().
		Str("reference", reference).
		Int64("amount", amount).
		Str("currency", code).
		Msg("initialising transaction")

	opened, err := p.client.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      amount,
		Currency:    code,
		Reference:   reference,
		CallbackURL: p.cfg.CallbackURL,
		Metadata: map[string]any{
			"session_id": sessionID,
			"provider":   ProviderID,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("initialise transaction failed")
		return p.errorResult(SessionData{"session_id": sessionID}, newProviderError("Paystack initialization failed", err))
	}

	if opened.Reference != "" {
		reference = opened.Reference
	}
	status := StatusPending
	if opened.AuthorizationURL != "" {
		status = StatusRequiresMore
	}
	data := SessionData{
		"session_id": sessionID,
		"reference":  reference,
		"amount":     amount,
		"currency":   code,
		"email":      email,
		"public_key": p.cfg.PublicKey,
		"status":     string(status),
		"created_at": p.timestamp(),
	}
	data.putIfSet("access_code", opened.AccessCode)
	data.putIfSet("authorization_url", opened.AuthorizationURL)
	return SessionResult{ID: reference, Data: data, Status: status}
}

// UpdatePayment re-initiates the session when it is stale and otherwise
// returns the stored data unchanged apart from updated_at.
func (p *PaystackProvider) UpdatePayment(ctx context.Context, in UpdateInput) (res SessionResult) {
	ctx, op := p.begin(ctx, "update")
	defer func() {
		if r := recover(); r != nil {
			res = p.updateError(in.Data, panicError(r))
		}
		op.end(res.Status, nil)
	}()

	email := in.Context.email()
	if email == "" {
		data := in.Data.Clone()
		data["status"] = string(StatusPending)
		data["amount"] = in.Amount.String()
		data["currency"] = in.CurrencyCode
		return SessionResult{ID: in.Data.String("session_id"), Data: data, Status: StatusPending}
	}

	if reason := reinitiateReason(in.Data); reason != "" {
		op.log.Info().Str("reason", reason).Msg("re-initialising session")
		fresh := SessionData{
			"session_id": in.Data.String("session_id"),
			"email":      email,
		}
		fresh.putIfSet("reference", in.Data.String("reference"))
		return p.initiate(ctx, op.log, InitiateInput{
			CurrencyCode: in.CurrencyCode,
			Amount:       in.Amount,
			Data:         fresh,
			Context:      in.Context,
		})
	}

	data := in.Data.Clone()
	data["updated_at"] = p.timestamp()
	status, ok := ParseSessionStatus(in.Data.String("status"))
	if !ok {
		status = StatusPending
	}
	id := in.Data.String("reference")
	if id == "" {
		id = in.Data.String("session_id")
	}
	return SessionResult{ID: id, Data: data, Status: status}
}

func reinitiateReason(d SessionData) string {
	switch {
	case d.String("status") == string(StatusPending):
		return "pending"
	case d.String("authorization_url") == "":
		return "no_authorization_url"
	case d.Bool("payment_completed"):
		return "payment_completed"
	case d.Bool("session_expired"):
		return "session_expired"
	default:
		return ""
	}
}

// AuthorizePayment verifies the transaction and merges the settled facts.
func (p *PaystackProvider) AuthorizePayment(ctx context.Context, data SessionData) (res AuthorizeResult, err error) {
	ctx, op := p.begin(ctx, "authorize")
	defer func() {
		if r := recover(); r != nil {
			res, err = AuthorizeResult{}, panicError(r)
		}
		if err != nil {
			res.Status = StatusError
		}
		op.end(res.Status, err)
	}()

	reference := data.String("reference")
	if reference == "" {
		return res, newProviderError("Payment reference is required for authorization", nil)
	}
	txn, err := p.client.VerifyTransaction(ctx, reference)
	if err != nil {
		return res, newProviderError("Payment verification failed", err)
	}
	if txn.Status != paystack.StatusSuccess {
		return res, newProviderError(fmt.Sprintf("Payment not successful. Status: %s", txn.Status), nil)
	}

	out := data.Clone()
	out["amount"] = txn.Amount
	out["authorized_amount"] = txn.Amount
	out["transaction_id"] = strconv.FormatInt(txn.ID, 10)
	out["gateway_response"] = txn.GatewayResponse
	out["paid_at"] = txn.PaidAt
	out["status"] = string(StatusAuthorized)
	if txn.Authorization != nil {
		out["authorization"] = txn.Authorization
	}
	return AuthorizeResult{Status: StatusAuthorized, Data: out}, nil
}

// CapturePayment re-verifies the transaction; Paystack captures on
// authorisation so nothing is sent upstream.
func (p *PaystackProvider) CapturePayment(ctx context.Context, data SessionData) (out SessionData, err error) {
	ctx, op := p.begin(ctx, "capture")
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, panicError(r)
		}
		op.end(StatusCaptured, err)
	}()

	reference := data.String("reference")
	if reference == "" {
		return nil, newProviderError("Payment reference is required for capture", nil)
	}
	txn, err := p.client.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, newProviderError("Payment capture failed - transaction not successful", err)
	}
	if txn.Status != paystack.StatusSuccess {
		return nil, newProviderError("Payment capture failed - transaction not successful", nil)
	}
	capturedAt := txn.PaidAt
	if capturedAt == "" {
		capturedAt = p.timestamp()
	}
	out = data.Clone()
	out["captured_amount"] = txn.Amount
	out["captured_at"] = capturedAt
	return out, nil
}

// RefundPayment refunds all or part of a transaction.
func (p *PaystackProvider) RefundPayment(ctx context.Context, in RefundInput) (res RefundResult, err error) {
	ctx, op := p.begin(ctx, "refund")
	defer func() {
		if r := recover(); r != nil {
			res, err = RefundResult{}, panicError(r)
		}
		op.end("refunded", err)
	}()

	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" {
		txID = in.Data.String("transaction_id")
	}
	if txID == "" {
		txID = in.Data.String("reference")
	}
	if txID == "" {
		return res, newProviderError("Transaction ID is required for refund", nil)
	}

	code := currency.Normalize(in.CurrencyCode)
	req := paystack.RefundRequest{
		Transaction:  txID,
		Currency:     code,
		CustomerNote: "Refund processed by merchant",
		MerchantNote: "Payment provider refund",
	}
	if !in.Amount.IsZero() {
		req.Amount = p.normalizer.ToSubunit(in.Amount, code)
	}
	op.log.Info().Str("transaction", txID).Int64("amount", req.Amount).Str("currency", code).Msg("creating refund")

	refund, err := p.client.CreateRefund(ctx, req)
	if err != nil {
		msg := "Refund failed"
		if gm := GatewayMessage(err); gm != "" {
			msg = "Refund failed: " + gm
		}
		return res, newProviderError(msg, err)
	}
	return RefundResult{Data: SessionData{
		"refund_id":       strconv.FormatInt(refund.ID, 10),
		"refund_status":   refund.Status,
		"refunded_amount": in.Amount,
		"currency":        code,
		"refunded_at":     p.timestamp(),
	}}, nil
}

// CancelPayment stamps cancelled_at. Paystack has no cancel call, so the
// transaction may still be completed by the customer.
func (p *PaystackProvider) CancelPayment(ctx context.Context, data SessionData) (SessionData, error) {
	_, op := p.begin(ctx, "cancel")
	out := data.Clone()
	out["cancelled_at"] = p.timestamp()
	op.log.Warn().Str("reference", data.String("reference")).Msg("session cancelled locally; gateway transaction remains open")
	op.end(StatusCanceled, nil)
	return out, nil
}

// RetrievePayment re-verifies the transaction and merges its current facts.
func (p *PaystackProvider) RetrievePayment(ctx context.Context, data SessionData) (out SessionData, err error) {
	ctx, op := p.begin(ctx, "retrieve")
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, panicError(r)
		}
		op.end("retrieved", err)
	}()

	reference := data.String("reference")
	if reference == "" {
		return nil, newProviderError("Payment reference is required", nil)
	}
	txn, err := p.client.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, newProviderError("Failed to retrieve payment", err)
	}
	out = data.Clone()
	out["amount"] = txn.Amount
	out["transaction_id"] = strconv.FormatInt(txn.ID, 10)
	out["gateway_response"] = txn.GatewayResponse
	out["gateway_status"] = txn.Status
	out["paid_at"] = txn.PaidAt
	return out, nil
}

// DeletePayment returns data unchanged; Paystack cannot delete transactions.
func (p *PaystackProvider) DeletePayment(_ context.Context, data SessionData) (SessionData, error) {
	return data, nil
}

// GetPaymentStatus verifies the transaction and maps its status.
func (p *PaystackProvider) GetPaymentStatus(ctx context.Context, data SessionData) (status SessionStatus) {
	ctx, op := p.begin(ctx, "status")
	defer func() {
		if r := recover(); r != nil {
			op.log.Error().Interface("panic", r).Msg("status lookup panicked")
			status = StatusError
		}
		op.end(status, nil)
	}()

	reference := data.String("reference")
	if reference == "" {
		return StatusError
	}
	txn, err := p.client.VerifyTransaction(ctx, reference)
	if err != nil {
		op.log.Warn().Err(err).Str("reference", reference).Msg("status verification failed")
		return StatusError
	}
	return MapGatewayStatus(txn.Status)
}

// GetWebhookActionAndData maps a webhook to a host action. It never fails.
func (p *PaystackProvider) GetWebhookActionAndData(ctx context.Context, in WebhookInput) WebhookActionResult {
	_, op := p.begin(ctx, "webhook")
	var res WebhookActionResult
	if len(in.RawData) > 0 {
		res = DispatchRaw(in.RawData)
	} else if in.Data != nil {
		event, _ := in.Data["event"].(string)
		data, _ := in.Data["data"].(map[string]any)
		res = DispatchEvent(event, data)
	} else {
		res = WebhookActionResult{Action: ActionFailed}
	}
	op.end(SessionStatus(res.Action), nil)
	return res
}

// VerifyWebhookSignature checks the x-paystack-signature header value.
func (p *PaystackProvider) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return VerifySignature(rawBody, signature, p.cfg.WebhookSecret)
}

func (p *PaystackProvider) errorResult(base SessionData, err error) SessionResult {
	p.logger.Error().Err(err).Msg("payment session error")
	return SessionResult{Data: errorData(SessionData{"session_id": base.String("session_id")}, err), Status: StatusError}
}

func (p *PaystackProvider) updateError(base SessionData, err error) SessionResult {
	p.logger.Error().Err(err).Msg("payment session update error")
	return SessionResult{Data: errorData(base, err), Status: StatusError}
}

func (p *PaystackProvider) timestamp() string {
	return p.now().UTC().Format(time.RFC3339)
}

type operation struct {
	name string
	span trace.Span
	log  zerolog.Logger
}

func (p *PaystackProvider) begin(ctx context.Context, name string) (context.Context, *operation) {
	ctx, span := otel.Tracer("payment.PaystackProvider").Start(ctx, "paystack."+name)
	span.SetAttributes(attribute.String("payment.provider", ProviderID))
	return ctx, &operation{
		name: name,
		span: span,
		log:  p.logger.With().Str("operation", name).Logger(),
	}
}

func (o *operation) end(status SessionStatus, err error) {
	label := string(status)
	if err != nil {
		label = string(StatusError)
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.log.Error().Err(err).Msg("operation failed")
	}
	if label == "" {
		label = "unknown"
	}
	o.span.SetAttributes(attribute.String("payment.status", label))
	if obs.PaymentSessionTotal != nil {
		obs.PaymentSessionTotal.WithLabelValues(o.name, label).Inc()
	}
	o.span.End()
}

func panicError(r any) error {
	return newProviderError(fmt.Sprintf("unexpected error: %v", r), nil)
}
