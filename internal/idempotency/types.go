package idempotency

import "time"

// Status values for webhook event entries
const (
	StatusReceived  = "RECEIVED"
	StatusProcessed = "PROCESSED"
)

// EventRecord is the shape persisted in the webhook events DynamoDB table.
// One entry per Stripe event id; the TTL keeps the table small since the
// upstream only retries events for a bounded window.
type EventRecord struct {
	EventID   string    `dynamodbav:"event_id"` // PK
	Status    string    `dynamodbav:"status"`
	SessionID string    `dynamodbav:"session_id,omitempty"`
	Note      string    `dynamodbav:"note,omitempty"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
	ExpiresAt int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
