package events

// Topic constants for payment events published to the host.
const (
	TopicPaymentAuthorized = "payment.authorized"
	TopicPaymentFailed     = "payment.failed"
)

// DefaultTopics returns the topics emitted for webhook actions.
func DefaultTopics() []string {
	return []string{TopicPaymentAuthorized, TopicPaymentFailed}
}
