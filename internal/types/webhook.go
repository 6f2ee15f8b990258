package types

import (
	"encoding/json"
	"time"
)

// Webhook event names published by the billing engine. Delivery and
// formatting are owned by an external notification collaborator.
const (
	WebhookEventPaymentSucceeded     = "payment.succeeded"
	WebhookEventPaymentFailed        = "payment.failed"
	WebhookEventSubscriptionCreated  = "subscription.created"
	WebhookEventSubscriptionCanceled = "subscription.canceled"
)

// WebhookEvent represents a webhook event to be published
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}
