package gateway

import (
	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
)

// NewGateway builds the configured gateway implementation. The result is
// handed to services as an explicit dependency at construction time.
func NewGateway(cfg *config.Configuration, logger *logger.Logger) (Gateway, error) {
	switch cfg.Billing.GatewayProvider {
	case FakeProviderName:
		return NewFakeGateway(cfg.Billing.FakeFailureRate, logger), nil
	default:
		return nil, ierr.NewError("unknown payment gateway provider").
			WithHintf("Payment gateway provider %q is not supported", cfg.Billing.GatewayProvider).
			Mark(ierr.ErrValidation)
	}
}
