package gateway

import (
	"context"

	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
)

// noopGateway approves every charge. Used in local and development modes
// where no real payment provider is configured.
type noopGateway struct {
	logger *logger.Logger
}

func NewNoopGateway(logger *logger.Logger) subscription.PaymentGateway {
	return &noopGateway{logger: logger}
}

func (g *noopGateway) Charge(ctx context.Context, sub *subscription.Subscription) error {
	g.logger.Infow("noop gateway approved charge",
		"subscription_id", sub.ID,
		"amount", sub.BillingAmount,
		"currency", sub.Currency)
	return nil
}
