package service

import (
	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/domain/tier"
	"github.com/billforge/billforge/internal/domain/usage"
	"github.com/billforge/billforge/internal/logger"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Clock  clock.Clock

	// Repositories
	SubRepo   subscription.Repository
	UsageRepo usage.Repository

	// Ports
	TierProvider   tier.Provider
	HistorySink    history.Sink
	PaymentGateway subscription.PaymentGateway
}
