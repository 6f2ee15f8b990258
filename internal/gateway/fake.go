package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const FakeProviderName = "fake"

// FakeGateway simulates a payment provider for development and testing.
// Charges fail with the configured probability and always complete
// synchronously; there are no partial or ambiguous outcomes.
type FakeGateway struct {
	failureRate float64
	logger      *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFakeGateway creates a fake gateway with the given failure probability
func NewFakeGateway(failureRate float64, logger *logger.Logger) *FakeGateway {
	return &FakeGateway{
		failureRate: failureRate,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *FakeGateway) Name() string {
	return FakeProviderName
}

func (g *FakeGateway) shouldFail() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < g.failureRate
}

// CreatePayment simulates a charge. An already-charged payment (one that
// carries a provider payment id) is acknowledged as succeeded without a
// second effective charge, mirroring provider-level idempotency.
func (g *FakeGateway) CreatePayment(ctx context.Context, p *payment.Payment, method *paymentmethod.PaymentMethodRef) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Payment gateway call was interrupted").
			Mark(ierr.ErrGatewayAmbiguous)
	}

	now := time.Now().UTC()

	if p.ProviderPaymentID != nil && p.PaymentStatus == types.PaymentStatusSucceeded {
		return &ChargeResult{
			ProviderPaymentID: *p.ProviderPaymentID,
			Status:            ChargeStatusSucceeded,
			CreatedAt:         now,
		}, nil
	}

	result := &ChargeResult{
		ProviderPaymentID: providerID(p.ID, now),
		Status:            ChargeStatusSucceeded,
		CreatedAt:         now,
	}
	if g.shouldFail() {
		result.Status = ChargeStatusFailed
		result.ErrorCode = lo.ToPtr("card_declined")
	}

	g.logger.Debugw("fake gateway charge",
		"payment_id", p.ID,
		"status", result.Status,
		"provider_payment_id", result.ProviderPaymentID)

	return result, nil
}

func (g *FakeGateway) RefundPayment(ctx context.Context, p *payment.Payment, amount decimal.Decimal, reason string) (*RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Payment gateway call was interrupted").
			Mark(ierr.ErrGatewayAmbiguous)
	}

	return &RefundResult{
		ProviderRefundID: providerID("refund_"+p.ID, time.Now().UTC()),
		Status:           ChargeStatusSucceeded,
	}, nil
}

func (g *FakeGateway) GetPaymentStatus(ctx context.Context, providerPaymentID string) (*StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Payment gateway call was interrupted").
			Mark(ierr.ErrGatewayAmbiguous)
	}

	return &StatusResult{Status: ChargeStatusSucceeded}, nil
}

func (g *FakeGateway) SavePaymentMethod(ctx context.Context, userID string, paymentToken string) (*SavedPaymentMethod, error) {
	if err := ctx.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Payment gateway call was interrupted").
			Mark(ierr.ErrGatewayAmbiguous)
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s_%s", userID, paymentToken)))
	return &SavedPaymentMethod{
		ProviderPaymentMethodID: hex.EncodeToString(hash[:]),
	}, nil
}

func providerID(seed string, now time.Time) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s%s", seed, now)))
	return hex.EncodeToString(hash[:])
}
