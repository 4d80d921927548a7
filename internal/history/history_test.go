package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/billforge/billforge/internal/config"
	domainhistory "github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/pubsub/memory"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingArchiver captures archived events for assertions
type recordingArchiver struct {
	mu     sync.Mutex
	events []*domainhistory.SubscriptionHistory
}

func (a *recordingArchiver) Archive(ctx context.Context, event *domainhistory.SubscriptionHistory) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingArchiver) Events() []*domainhistory.SubscriptionHistory {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domainhistory.SubscriptionHistory, len(a.events))
	copy(out, a.events)
	return out
}

func TestPublishAndConsume(t *testing.T) {
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	pubSub := memory.NewPubSub(log)
	defer pubSub.Close()

	sink := NewPublisher(pubSub, cfg, log)
	archiver := &recordingArchiver{}
	consumer := NewConsumer(pubSub, cfg, archiver, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = consumer.Run(ctx)
	}()

	event := &domainhistory.SubscriptionHistory{
		SubscriptionID:   "subs_1",
		UserID:           "user_1",
		ChangeType:       types.SubscriptionChangeActivated,
		OldTier:          types.SubscriptionTierFree,
		NewTier:          types.SubscriptionTierPro,
		OldBillingAmount: decimal.Zero,
		NewBillingAmount: decimal.RequireFromString("29.99"),
		InitiatedBy:      "user_1",
		Timestamp:        time.Now().UTC(),
	}
	require.NoError(t, sink.RecordChange(ctx, event))

	// The publisher assigns an ID when the event has none
	assert.NotEmpty(t, event.ID)

	require.Eventually(t, func() bool {
		return len(archiver.Events()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	got := archiver.Events()[0]
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "subs_1", got.SubscriptionID)
	assert.Equal(t, types.SubscriptionChangeActivated, got.ChangeType)
	assert.True(t, got.NewBillingAmount.Equal(decimal.RequireFromString("29.99")))
}

func TestConsumerPreservesOrder(t *testing.T) {
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	pubSub := memory.NewPubSub(log)
	defer pubSub.Close()

	sink := NewPublisher(pubSub, cfg, log)
	archiver := &recordingArchiver{}
	consumer := NewConsumer(pubSub, cfg, archiver, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = consumer.Run(ctx)
	}()

	changes := []types.SubscriptionChangeType{
		types.SubscriptionChangeCreated,
		types.SubscriptionChangeActivated,
		types.SubscriptionChangeRenewed,
		types.SubscriptionChangeCancelled,
	}
	for _, change := range changes {
		require.NoError(t, sink.RecordChange(ctx, &domainhistory.SubscriptionHistory{
			SubscriptionID: "subs_1",
			UserID:         "user_1",
			ChangeType:     change,
			Timestamp:      time.Now().UTC(),
		}))
	}

	require.Eventually(t, func() bool {
		return len(archiver.Events()) == len(changes)
	}, 5*time.Second, 10*time.Millisecond)

	for i, event := range archiver.Events() {
		assert.Equal(t, changes[i], event.ChangeType)
	}
}
