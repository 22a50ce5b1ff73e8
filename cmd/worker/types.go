package main

// WorkerMessage is the payload sent from intake -> SQS -> worker.
type WorkerMessage struct {
	SessionID     string `json:"session_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
