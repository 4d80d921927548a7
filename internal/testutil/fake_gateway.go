package testutil

import (
	"context"
	"sync"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
)

// FakePaymentGateway implements subscription.PaymentGateway with scriptable
// outcomes. Charges are recorded for assertions; declines are configured per
// subscription ID or globally.
type FakePaymentGateway struct {
	mu         sync.Mutex
	charges    []string
	declineAll bool
	declineIDs map[string]bool
}

func NewFakePaymentGateway() *FakePaymentGateway {
	return &FakePaymentGateway{
		charges:    make([]string, 0),
		declineIDs: make(map[string]bool),
	}
}

func (g *FakePaymentGateway) Charge(ctx context.Context, sub *subscription.Subscription) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.charges = append(g.charges, sub.ID)
	if g.declineAll || g.declineIDs[sub.ID] {
		return ierr.NewError("card declined").
			WithHint("The payment method was declined").
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// DeclineAll makes every subsequent charge fail
func (g *FakePaymentGateway) DeclineAll(decline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declineAll = decline
}

// DeclineFor makes charges for one subscription fail
func (g *FakePaymentGateway) DeclineFor(subscriptionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declineIDs[subscriptionID] = true
}

// Charges returns the subscription IDs charged so far, in order
func (g *FakePaymentGateway) Charges() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.charges))
	copy(out, g.charges)
	return out
}

// Clear resets recorded charges and configured declines
func (g *FakePaymentGateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = make([]string, 0)
	g.declineAll = false
	g.declineIDs = make(map[string]bool)
}
