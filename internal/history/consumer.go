package history

import (
	"context"
	"encoding/json"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/pubsub"
)

// Consumer drains the history topic and hands each change event to the
// archiver. A malformed message is logged and acked so it cannot wedge the
// topic.
type Consumer struct {
	subscriber pubsub.Subscriber
	topic      string
	archiver   Archiver
	logger     *logger.Logger
}

// Archiver persists or forwards change events drained from the topic
type Archiver interface {
	Archive(ctx context.Context, event *history.SubscriptionHistory) error
}

// NewConsumer creates a consumer for the history topic
func NewConsumer(
	subscriber pubsub.Subscriber,
	cfg *config.Configuration,
	archiver Archiver,
	logger *logger.Logger,
) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		topic:      cfg.Events.Topic,
		archiver:   archiver,
		logger:     logger,
	}
}

// Run consumes until the context is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var event history.SubscriptionHistory
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				c.logger.Errorw("dropping malformed history event",
					"message_id", msg.UUID,
					"error", err)
				msg.Ack()
				continue
			}

			if err := c.archiver.Archive(ctx, &event); err != nil {
				c.logger.Errorw("failed to archive history event",
					"event_id", event.ID,
					"subscription_id", event.SubscriptionID,
					"error", err)
				msg.Nack()
				continue
			}

			msg.Ack()
		}
	}
}

// LogArchiver is the default archiver, it records events to the
// application log
type LogArchiver struct {
	Logger *logger.Logger
}

func (a *LogArchiver) Archive(ctx context.Context, event *history.SubscriptionHistory) error {
	a.Logger.Infow("subscription history event",
		"event_id", event.ID,
		"subscription_id", event.SubscriptionID,
		"user_id", event.UserID,
		"change_type", event.ChangeType,
		"old_tier", event.OldTier,
		"new_tier", event.NewTier,
		"old_billing_amount", event.OldBillingAmount,
		"new_billing_amount", event.NewBillingAmount,
		"reason", event.Reason,
		"initiated_by", event.InitiatedBy,
	)
	return nil
}
