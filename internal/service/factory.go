package service

import (
	"github.com/billforge/billforge/internal/cache"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/ledger"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	"github.com/billforge/billforge/internal/domain/plan"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	webhookPublisher "github.com/billforge/billforge/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services. Every service
// receives its gateway and repositories explicitly at construction;
// nothing is looked up through globals.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	// Repositories
	PlanRepo          plan.Repository
	SubRepo           subscription.Repository
	InvoiceRepo       invoice.Repository
	PaymentRepo       payment.Repository
	LedgerRepo        ledger.Repository
	PaymentMethodRepo paymentmethod.Repository

	// Gateway
	Gateway gateway.Gateway

	// Publishers
	WebhookPublisher webhookPublisher.WebhookPublisher
}

// NewServiceParams bundles the common service dependencies
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	ledgerRepo ledger.Repository,
	paymentMethodRepo paymentmethod.Repository,
	gw gateway.Gateway,
	webhookPublisher webhookPublisher.WebhookPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:            logger,
		Config:            config,
		DB:                db,
		Cache:             cache,
		PlanRepo:          planRepo,
		SubRepo:           subRepo,
		InvoiceRepo:       invoiceRepo,
		PaymentRepo:       paymentRepo,
		LedgerRepo:        ledgerRepo,
		PaymentMethodRepo: paymentMethodRepo,
		Gateway:           gw,
		WebhookPublisher:  webhookPublisher,
	}
}
