package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/fx"

	"github.com/billforge/billforge/internal/api"
	"github.com/billforge/billforge/internal/api/cron"
	v1 "github.com/billforge/billforge/internal/api/v1"
	"github.com/billforge/billforge/internal/cache"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/pubsub/memory"
	"github.com/billforge/billforge/internal/repository"
	"github.com/billforge/billforge/internal/service"
	webhookPublisher "github.com/billforge/billforge/internal/webhook/publisher"
)

func init() {
	// All billing decisions are made in UTC
	time.Local = time.UTC
}

func main() {
	fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			postgres.NewDB,
			provideDBClient,
			cache.NewInMemoryCache,
			memory.NewPubSub,
			webhookPublisher.NewPublisher,

			// Repositories
			repository.NewPlanRepository,
			repository.NewSubscriptionRepository,
			repository.NewInvoiceRepository,
			repository.NewPaymentRepository,
			repository.NewLedgerRepository,
			repository.NewPaymentMethodRepository,

			// Gateway
			gateway.NewGateway,

			// Services
			service.NewServiceParams,
			service.NewPlanService,
			service.NewSubscriptionService,
			service.NewPaymentService,
			service.NewBillingService,

			// HTTP
			v1.NewPlanHandler,
			v1.NewSubscriptionHandler,
			v1.NewPaymentHandler,
			cron.NewBillingHandler,
			api.NewRouter,
		),
		fx.Invoke(startServer),
	).Run()
}

func provideDBClient(db *sqlx.DB, logger *logger.Logger) postgres.IClient {
	return postgres.NewClient(db, logger)
}

func startServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Configuration,
	db *sqlx.DB,
	publisher webhookPublisher.WebhookPublisher,
	log *logger.Logger,
) {
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting server", "address", cfg.Server.Address)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalw("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("shutting down server")
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			if err := publisher.Close(); err != nil {
				log.Errorw("closing webhook publisher", "error", err)
			}
			return db.Close()
		},
	})
}
