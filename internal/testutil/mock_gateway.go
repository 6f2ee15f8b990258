package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var _ gateway.Gateway = (*MockGateway)(nil)

// MockGateway is a scriptable gateway for tests. The next verdict is set
// explicitly; every call is recorded for assertions.
type MockGateway struct {
	mu sync.Mutex

	// NextChargeStatus is the verdict returned by the next CreatePayment
	// call; defaults to SUCCEEDED
	NextChargeStatus gateway.ChargeStatus
	// NextChargeErr, when set, is returned instead of a result
	NextChargeErr error
	// NextStatus is the verdict returned by GetPaymentStatus
	NextStatus gateway.ChargeStatus
	// RefundErr, when set, fails the next refund
	RefundErr error

	chargeCalls []string
	statusCalls []string
	refundCalls []decimal.Decimal
	seq         int
}

// NewMockGateway creates a gateway that approves everything until told
// otherwise
func NewMockGateway() *MockGateway {
	return &MockGateway{
		NextChargeStatus: gateway.ChargeStatusSucceeded,
		NextStatus:       gateway.ChargeStatusPending,
	}
}

// Name returns the provider name
func (g *MockGateway) Name() string {
	return "mock"
}

// CreatePayment returns the scripted verdict and records the call
func (g *MockGateway) CreatePayment(ctx context.Context, p *payment.Payment, method *paymentmethod.PaymentMethodRef) (*gateway.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.chargeCalls = append(g.chargeCalls, p.IdempotencyKey)
	if g.NextChargeErr != nil {
		return nil, g.NextChargeErr
	}

	g.seq++
	result := &gateway.ChargeResult{
		Status:    g.NextChargeStatus,
		CreatedAt: time.Now().UTC(),
	}
	switch g.NextChargeStatus {
	case gateway.ChargeStatusSucceeded, gateway.ChargeStatusPending:
		result.ProviderPaymentID = fmt.Sprintf("mock_ch_%d", g.seq)
	case gateway.ChargeStatusFailed:
		result.ErrorCode = lo.ToPtr("card_declined")
	}
	return result, nil
}

// RefundPayment approves the refund unless scripted to fail
func (g *MockGateway) RefundPayment(ctx context.Context, p *payment.Payment, amount decimal.Decimal, reason string) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refundCalls = append(g.refundCalls, amount)
	if g.RefundErr != nil {
		return nil, g.RefundErr
	}

	g.seq++
	return &gateway.RefundResult{
		ProviderRefundID: fmt.Sprintf("mock_re_%d", g.seq),
		Status:           gateway.ChargeStatusSucceeded,
	}, nil
}

// GetPaymentStatus returns the scripted reconciliation verdict
func (g *MockGateway) GetPaymentStatus(ctx context.Context, providerPaymentID string) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.statusCalls = append(g.statusCalls, providerPaymentID)
	return &gateway.StatusResult{Status: g.NextStatus}, nil
}

// SavePaymentMethod registers the token and returns a deterministic
// provider reference
func (g *MockGateway) SavePaymentMethod(ctx context.Context, userID string, paymentToken string) (*gateway.SavedPaymentMethod, error) {
	return &gateway.SavedPaymentMethod{
		ProviderPaymentMethodID: fmt.Sprintf("mock_pm_%s_%s", userID, paymentToken),
	}, nil
}

// ChargeCalls returns the idempotency keys of all charge attempts
func (g *MockGateway) ChargeCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.chargeCalls...)
}

// StatusCalls returns the provider payment ids probed for status
func (g *MockGateway) StatusCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.statusCalls...)
}

// RefundCalls returns the amounts of all refund attempts
func (g *MockGateway) RefundCalls() []decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]decimal.Decimal{}, g.refundCalls...)
}

// SetVerdict sets the verdict of the next charge attempts
func (g *MockGateway) SetVerdict(status gateway.ChargeStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.NextChargeStatus = status
	g.NextChargeErr = nil
}

// SetChargeErr sets the error returned by the next charge attempts
func (g *MockGateway) SetChargeErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.NextChargeErr = err
}
