package main

import (
	"context"
	"net/http"
	"time"

	"github.com/billforge/billforge/internal/api"
	cronapi "github.com/billforge/billforge/internal/api/cron"
	v1 "github.com/billforge/billforge/internal/api/v1"
	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/domain/subscription"
	domaintier "github.com/billforge/billforge/internal/domain/tier"
	"github.com/billforge/billforge/internal/domain/usage"
	"github.com/billforge/billforge/internal/gateway"
	historysink "github.com/billforge/billforge/internal/history"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/pubsub"
	"github.com/billforge/billforge/internal/pubsub/memory"
	"github.com/billforge/billforge/internal/repository/postgres"
	"github.com/billforge/billforge/internal/service"
	"github.com/billforge/billforge/internal/tier"
	"github.com/billforge/billforge/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

func init() {
	// The whole application runs in UTC
	time.Local = time.UTC
}

func main() {
	// Load .env for local development, absence is fine
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			clock.New,

			postgres.NewDB,
			postgres.NewSubscriptionRepository,
			postgres.NewUsageRepository,
			postgres.NewHistoryArchiver,

			memory.NewPubSub,
			func(ps pubsub.PubSub) pubsub.Publisher { return ps },
			func(ps pubsub.PubSub) pubsub.Subscriber { return ps },
			historysink.NewPublisher,
			historysink.NewConsumer,

			tier.NewConfigProvider,
			providePaymentGateway,

			provideServiceParams,
			service.NewSubscriptionService,
			service.NewUsageService,
			service.NewMaintenanceService,

			v1.NewSubscriptionHandler,
			v1.NewUsageHandler,
			cronapi.NewMaintenanceHandler,
			provideRouter,
		),
		fx.Invoke(
			startHistoryConsumer,
			startSweepScheduler,
			startServer,
		),
	)

	app.Run()
}

func providePaymentGateway(log *logger.Logger) subscription.PaymentGateway {
	return gateway.NewNoopGateway(log)
}

func provideServiceParams(
	log *logger.Logger,
	cfg *config.Configuration,
	clk clock.Clock,
	subRepo subscription.Repository,
	usageRepo usage.Repository,
	tierProvider domaintier.Provider,
	sink history.Sink,
	paymentGateway subscription.PaymentGateway,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:         log,
		Config:         cfg,
		Clock:          clk,
		SubRepo:        subRepo,
		UsageRepo:      usageRepo,
		TierProvider:   tierProvider,
		HistorySink:    sink,
		PaymentGateway: paymentGateway,
	}
}

func provideRouter(
	cfg *config.Configuration,
	subscriptionHandler *v1.SubscriptionHandler,
	usageHandler *v1.UsageHandler,
	maintenanceHandler *cronapi.MaintenanceHandler,
) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewRouter(api.Handlers{
		Subscription: subscriptionHandler,
		Usage:        usageHandler,
		Maintenance:  maintenanceHandler,
	})
}

func startHistoryConsumer(
	lc fx.Lifecycle,
	consumer *historysink.Consumer,
	log *logger.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
					log.Errorw("history consumer stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startSweepScheduler(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	maintenance service.MaintenanceService,
	log *logger.Logger,
) error {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(cfg.Billing.SweepSchedule, func() {
		ctx := context.Background()

		if _, err := maintenance.ProcessDueBilling(ctx); err != nil {
			log.Errorw("scheduled billing sweep failed", "error", err)
		}
		if _, err := maintenance.ProcessExpiredTrials(ctx); err != nil {
			log.Errorw("scheduled trial expiry sweep failed", "error", err)
		}
		if _, err := maintenance.ProcessUsageResets(ctx); err != nil {
			log.Errorw("scheduled usage reset sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			log.Infow("sweep scheduler started", "schedule", cfg.Billing.SweepSchedule)
			return nil
		},
		OnStop: func(context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
	return nil
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *gin.Engine,
	log *logger.Logger,
) {
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Infow("starting server", "address", cfg.Server.Address)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalw("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
