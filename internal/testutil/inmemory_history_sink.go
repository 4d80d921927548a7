package testutil

import (
	"context"
	"sync"

	"github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/types"
)

// InMemoryHistorySink implements history.Sink, recording events in emission
// order for assertions
type InMemoryHistorySink struct {
	mu     sync.RWMutex
	events []*history.SubscriptionHistory
}

func NewInMemoryHistorySink() *InMemoryHistorySink {
	return &InMemoryHistorySink{
		events: make([]*history.SubscriptionHistory, 0),
	}
}

func (s *InMemoryHistorySink) RecordChange(ctx context.Context, event *history.SubscriptionHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryHistorySink) Close() error {
	return nil
}

// Events returns a snapshot of all recorded events in emission order
func (s *InMemoryHistorySink) Events() []*history.SubscriptionHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*history.SubscriptionHistory, len(s.events))
	copy(out, s.events)
	return out
}

// EventsFor returns the recorded events for one subscription
func (s *InMemoryHistorySink) EventsFor(subscriptionID string) []*history.SubscriptionHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*history.SubscriptionHistory, 0)
	for _, event := range s.events {
		if event.SubscriptionID == subscriptionID {
			out = append(out, event)
		}
	}
	return out
}

// LastChangeType returns the change type of the most recent event for the
// subscription, or empty when none was recorded
func (s *InMemoryHistorySink) LastChangeType(subscriptionID string) types.SubscriptionChangeType {
	events := s.EventsFor(subscriptionID)
	if len(events) == 0 {
		return ""
	}
	return events[len(events)-1].ChangeType
}

// Clear removes all recorded events
func (s *InMemoryHistorySink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]*history.SubscriptionHistory, 0)
}
