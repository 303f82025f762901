package payment

import "github.com/noah-isme/paystack-provider/internal/paystack"

// MapGatewayStatus translates a Paystack transaction status. Any value other
// than success, failed or abandoned maps to pending.
func MapGatewayStatus(status string) SessionStatus {
	switch status {
	case paystack.StatusSuccess:
		return StatusAuthorized
	case paystack.StatusFailed:
		return StatusError
	case paystack.StatusAbandoned:
		return StatusCanceled
	default:
		return StatusPending
	}
}
