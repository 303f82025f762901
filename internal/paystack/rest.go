package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/paystack-provider/internal/obs"
	"github.com/noah-isme/paystack-provider/internal/resilience"
)

// DefaultBaseURL is the public Paystack API host.
const DefaultBaseURL = "https://api.paystack.co"

const maxResponseBytes = 1 << 20

// REST is the live Client backed by the Paystack HTTP API.
type REST struct {
	SecretKey string
	BaseURL   string
	HTTP      resilience.HTTPClient
	Logger    zerolog.Logger
}

// Options tune the transport built by NewREST.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBase    time.Duration
	RetryJitter  float64
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
	Logger       zerolog.Logger
}

// NewREST builds a REST client over an instrumented transport guarded by a
// circuit breaker.
func NewREST(secretKey string, opts Options) *REST {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := resilience.NewBreaker(opts.MinRequests, opts.FailureRatio, opts.OpenFor).
		WithTarget("paystack").
		WithLogger(opts.Logger)
	return &REST{
		SecretKey: secretKey,
		BaseURL:   opts.BaseURL,
		Logger:    opts.Logger,
		HTTP: resilience.HTTPClient{
			Client:      HTTPClient(timeout),
			Breaker:     breaker,
			BaseBackoff: opts.RetryBase,
			MaxAttempts: opts.MaxAttempts,
			Jitter:      opts.RetryJitter,
			Timeout:     timeout,
			Target:      "paystack",
		},
	}
}

// HTTPClient returns an http.Client whose transport emits client spans.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransaction calls POST /transaction/initialize.
func (c *REST) InitializeTransaction(ctx context.Context, req InitializeRequest) (Initialization, error) {
	var out Initialization
	err := c.call(ctx, "initialize", http.MethodPost, "/transaction/initialize", req, &out)
	return out, err
}

// VerifyTransaction calls GET /transaction/verify/:reference.
func (c *REST) VerifyTransaction(ctx context.Context, reference string) (Transaction, error) {
	var out Transaction
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return out, &APIError{Operation: "verify", Message: "reference is required"}
	}
	err := c.call(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out)
	return out, err
}

// CreateRefund calls POST /refund.
func (c *REST) CreateRefund(ctx context.Context, req RefundRequest) (Refund, error) {
	var out Refund
	if strings.TrimSpace(req.Transaction) == "" {
		return out, &APIError{Operation: "refund", Message: "transaction is required"}
	}
	err := c.call(ctx, "refund", http.MethodPost, "/refund", req, &out)
	return out, err
}

func (c *REST) call(ctx context.Context, op, method, path string, in, out any) (err error) {
	ctx, span := otel.Tracer("paystack.REST").Start(ctx, "paystack."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("paystack.operation", op),
		attribute.String("http.method", method),
	)

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.Logger.Warn().Err(err).Str("operation", op).Msg("paystack call failed")
		}
		if obs.GatewayRequestTotal != nil {
			obs.GatewayRequestTotal.WithLabelValues(op, result).Inc()
		}
		if obs.GatewayRequestDuration != nil {
			obs.GatewayRequestDuration.WithLabelValues(op).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &APIError{Operation: op, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, body)
	if err != nil {
		return &APIError{Operation: op, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		msg := "gateway unreachable"
		if errors.Is(err, resilience.ErrOpenCircuit) {
			msg = "gateway temporarily unavailable"
		}
		return &APIError{Operation: op, Message: msg, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected response: %s", http.StatusText(resp.StatusCode)),
			Raw:        rawJSON(raw),
			Err:        err,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		msg := env.Message
		if strings.TrimSpace(msg) == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Message: msg, Raw: rawJSON(raw)}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Operation: op, StatusCode: resp.StatusCode, Message: "decode response data", Raw: rawJSON(raw), Err: err}
		}
	}
	return nil
}

func (c *REST) baseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return DefaultBaseURL
	}
	return base
}

func rawJSON(raw []byte) json.RawMessage {
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		return quoted
	}
	return json.RawMessage(raw)
}
