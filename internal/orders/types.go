package orders

import "time"

// Order statuses. delivered is terminal: a delivered order is never reprocessed.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDelivered  = "delivered"
	StatusFailed     = "failed"
)

// Order represents the item stored in the orders DynamoDB table,
// keyed by the payment session id.
type Order struct {
	SessionID string    `dynamodbav:"session_id"` // PK, immutable once created
	Email     string    `dynamodbav:"email,omitempty"`
	Name      string    `dynamodbav:"name,omitempty"`   // localized name
	Romaji    string    `dynamodbav:"romaji,omitempty"` // romanized name
	Status    string    `dynamodbav:"status"`           // queued | processing | delivered | failed
	Error     string    `dynamodbav:"error,omitempty"`  // last failure reason, cleared on retry
	PNGURL    string    `dynamodbav:"png_url,omitempty"` // set only on delivery
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
	Attempts  int       `dynamodbav:"attempts,omitempty"`
}
