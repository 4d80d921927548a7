package history

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/pubsub"
	"github.com/billforge/billforge/internal/types"
)

// publisher implements history.Sink over the pubsub port. Failures are
// logged and returned, but callers treat the sink as fire and forget.
type publisher struct {
	pubSub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

// NewPublisher creates a history sink publishing change events to the
// configured topic
func NewPublisher(
	pubSub pubsub.Publisher,
	cfg *config.Configuration,
	logger *logger.Logger,
) history.Sink {
	return &publisher{
		pubSub: pubSub,
		topic:  cfg.Events.Topic,
		logger: logger,
	}
}

func (p *publisher) RecordChange(ctx context.Context, event *history.SubscriptionHistory) error {
	if event.ID == "" {
		event.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_HISTORY)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	messageID := event.ID
	if messageID == "" {
		messageID = watermill.NewUUID()
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set("subscription_id", event.SubscriptionID)
	msg.Metadata.Set("change_type", event.ChangeType.String())

	p.logger.Debugw("publishing subscription history event",
		"event_id", event.ID,
		"subscription_id", event.SubscriptionID,
		"change_type", event.ChangeType,
		"topic", p.topic,
	)

	if err := p.pubSub.Publish(ctx, p.topic, msg); err != nil {
		p.logger.Errorw("failed to publish subscription history event",
			"error", err,
			"event_id", event.ID,
			"subscription_id", event.SubscriptionID,
			"change_type", event.ChangeType,
		)
		return err
	}

	return nil
}

// Close closes the underlying publisher
func (p *publisher) Close() error {
	return p.pubSub.Close()
}
