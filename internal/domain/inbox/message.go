// internal/domain/inbox/message.go
package inbox

import (
	"context"
	"time"
)

// MessageType tags what produced a message.
type MessageType string

const (
	MessageTypeEventStage MessageType = "EVENT_STAGE"
)

// Message corresponds to the 'messages' table.
type Message struct {
	ID        int64
	AuthorID  int64
	Body      string
	Type      MessageType
	CreatedAt time.Time
}

// Delivery is one recipient's copy of a message ('message_deliveries').
type Delivery struct {
	ID          int64
	MessageID   int64
	RecipientID int64
	IsRead      bool
	CreatedAt   time.Time
}

// Writer persists fan-out records. Implementations run inside the caller's transaction.
type Writer interface {
	// CreateMessage inserts m and sets its ID.
	CreateMessage(ctx context.Context, m *Message) error
	// CreateDeliveries inserts one unread delivery per recipient, ignoring
	// pairs that already exist, and returns the number of rows inserted.
	CreateDeliveries(ctx context.Context, messageID int64, recipientIDs []int64, at time.Time) (int, error)
}
