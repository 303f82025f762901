package payment

import (
	"errors"
	"fmt"

	"github.com/noah-isme/paystack-provider/internal/paystack"
)

// ErrorCode tags every error produced by this provider.
const ErrorCode = "PAYSTACK_ERROR"

// ProviderError is the uniform failure returned by provider operations.
// Detail holds the underlying cause, usually a *paystack.APIError.
type ProviderError struct {
	Code    string
	Message string
	Detail  any
}

func newProviderError(message string, detail any) *ProviderError {
	return &ProviderError{Code: ErrorCode, Message: message, Detail: detail}
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if err, ok := e.Detail.(error); ok && err != nil {
		return fmt.Sprintf("%s: %v", e.Message, err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	if err, ok := e.Detail.(error); ok {
		return err
	}
	return nil
}

// GatewayMessage returns the message Paystack attached to a failure, if any.
func GatewayMessage(err error) string {
	var apiErr *paystack.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// errorData is the session payload attached to an ERROR result.
func errorData(base SessionData, err error) SessionData {
	out := base.Clone()
	msg := err.Error()
	var pe *ProviderError
	if errors.As(err, &pe) {
		msg = pe.Message
		if gm := GatewayMessage(err); gm != "" {
			msg = pe.Message + ": " + gm
		}
	}
	out["error"] = msg
	out["code"] = ErrorCode
	out["status"] = string(StatusError)
	return out
}
