package subscription

import "context"

// PaymentGateway is the outbound port for charging a subscription's
// billing amount. Protocol handling, retries and circuit breaking live
// behind this interface, outside the core.
type PaymentGateway interface {
	// Charge attempts to collect the subscription's billing amount.
	// A non nil error means the attempt failed and counts against the
	// failed billing escalation.
	Charge(ctx context.Context, sub *Subscription) error
}
