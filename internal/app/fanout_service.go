// internal/app/fanout_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"contest_lifecycle/internal/domain/inbox"
	"contest_lifecycle/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// FanoutService creates one message and one unread delivery per recipient.
type FanoutService struct {
	logger logrus.FieldLogger
}

func NewFanoutService(logger logrus.FieldLogger) *FanoutService {
	return &FanoutService{logger: logger}
}

// Notify writes the message through w, which is expected to be bound to the
// caller's transaction. An empty recipient set writes nothing and returns 0.
func (s *FanoutService) Notify(ctx context.Context, w inbox.Writer, authorID int64, recipientIDs []int64, body string, msgType inbox.MessageType, at time.Time) (int, error) {
	recipients := uniqueRecipients(recipientIDs)
	if len(recipients) == 0 {
		s.logger.WithField("message_type", msgType).Debug("No recipients, skipping fan-out")
		return 0, nil
	}

	msg := &inbox.Message{
		AuthorID:  authorID,
		Body:      body,
		Type:      msgType,
		CreatedAt: at,
	}
	if err := w.CreateMessage(ctx, msg); err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}

	n, err := w.CreateDeliveries(ctx, msg.ID, recipients, at)
	if err != nil {
		return 0, fmt.Errorf("failed to create deliveries for message %d: %w", msg.ID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"recipients": len(recipients),
		"deliveries": n,
	}).Debug("Fan-out written")
	metrics.RecordDeliveries(n)
	return n, nil
}

// uniqueRecipients drops duplicates and non-positive ids, keeping first-seen order.
func uniqueRecipients(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
