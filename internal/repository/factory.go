package repository

import (
	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/ledger"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	"github.com/billforge/billforge/internal/domain/plan"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	postgresRepo "github.com/billforge/billforge/internal/repository/postgres"
)

func NewPlanRepository(client postgres.IClient, logger *logger.Logger) plan.Repository {
	return postgresRepo.NewPlanRepository(client, logger)
}

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(client, logger)
}

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(client, logger)
}

func NewPaymentRepository(client postgres.IClient, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(client, logger)
}

func NewLedgerRepository(client postgres.IClient, logger *logger.Logger) ledger.Repository {
	return postgresRepo.NewLedgerRepository(client, logger)
}

func NewPaymentMethodRepository(client postgres.IClient, logger *logger.Logger) paymentmethod.Repository {
	return postgresRepo.NewPaymentMethodRepository(client, logger)
}
