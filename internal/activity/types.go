package activity

import (
	"time"

	"github.com/google/uuid"
)

// Kind values for order activity events
const (
	KindOrderCreated = "order.created"
	KindOrderDeleted = "order.deleted"
	KindOrderUpdated = "order.updated"
)

// Event is one user action against an order, as carried on the activity queue.
type Event struct {
	EventID    string    `json:"event_id" dynamodbav:"event_id"` // PK
	Kind       string    `json:"kind" dynamodbav:"kind"`
	OrderID    int       `json:"order_id" dynamodbav:"order_id"`
	Username   string    `json:"username" dynamodbav:"username"`
	RequestID  string    `json:"request_id,omitempty" dynamodbav:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at" dynamodbav:"occurred_at"`
}

// Record is the shape persisted in the activity DynamoDB table.
type Record struct {
	Event
	RecordedAt time.Time `dynamodbav:"recorded_at"`
	ExpiresAt  int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// NewEvent stamps a fresh event ID.
func NewEvent(kind string, orderID int, username, requestID string, at time.Time) Event {
	return Event{
		EventID:    uuid.NewString(),
		Kind:       kind,
		OrderID:    orderID,
		Username:   username,
		RequestID:  requestID,
		OccurredAt: at.UTC(),
	}
}
