package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/ledger"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PaymentService exposes payment reads, refunds and stored payment
// method registration.
type PaymentService interface {
	GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error)
	// RefundPayment refunds part or all of a SUCCEEDED payment. The
	// refunded amount never exceeds the original charge.
	RefundPayment(ctx context.Context, id string, req *dto.RefundPaymentRequest) (*dto.RefundResponse, error)
	// SavePaymentMethod registers a tokenized credential at the gateway
	// and stores the opaque reference.
	SavePaymentMethod(ctx context.Context, req *dto.SavePaymentMethodRequest) (*dto.PaymentMethodResponse, error)
	ListPaymentMethods(ctx context.Context, userID string) ([]*dto.PaymentMethodResponse, error)
	ListTransactions(ctx context.Context, filter *types.TransactionFilter) (*dto.ListTransactionsResponse, error)
}

type paymentService struct {
	ServiceParams
}

// NewPaymentService creates a new payment service
func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentResponse(p), nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error) {
	if filter == nil {
		filter = &types.PaymentFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.PaymentRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListPaymentsResponse{
		Items: make([]*dto.PaymentResponse, 0, len(payments)),
		Total: total,
	}
	for _, p := range payments {
		resp.Items = append(resp.Items, dto.NewPaymentResponse(p))
	}
	return resp, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, id string, req *dto.RefundPaymentRequest) (*dto.RefundResponse, error) {
	if req == nil {
		req = &dto.RefundPaymentRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var resp *dto.RefundResponse

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if p.PaymentStatus != types.PaymentStatusSucceeded {
			return ierr.NewError("payment is not refundable").
				WithHint("Only succeeded payments can be refunded").
				WithReportableDetails(map[string]any{
					"payment_id": p.ID,
					"status":     p.PaymentStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		amount := p.Amount
		if req.Amount != nil {
			amount = *req.Amount
		}
		if amount.GreaterThan(p.Amount) {
			return ierr.NewError("refund exceeds original amount").
				WithHint("The refund amount must not exceed the original charge").
				WithReportableDetails(map[string]any{
					"payment_id":      p.ID,
					"refund_amount":   amount,
					"original_amount": p.Amount,
				}).
				Mark(ierr.ErrValidation)
		}

		// Sum prior refunds so repeated partial refunds stay within the
		// original charge.
		refunded, err := s.refundedTotal(ctx, p.ID)
		if err != nil {
			return err
		}
		if refunded.Add(amount).GreaterThan(p.Amount) {
			return ierr.NewError("refund exceeds remaining refundable amount").
				WithHint("The payment has already been partially refunded").
				WithReportableDetails(map[string]any{
					"payment_id":       p.ID,
					"refund_amount":    amount,
					"already_refunded": refunded,
					"original_amount":  p.Amount,
				}).
				Mark(ierr.ErrValidation)
		}

		gwCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
		defer cancel()
		result, err := s.Gateway.RefundPayment(gwCtx, p, amount, req.Reason)
		if err != nil {
			return err
		}
		if result.Status != gateway.ChargeStatusSucceeded {
			return ierr.NewError("refund rejected by provider").
				WithHint("The provider did not accept the refund").
				WithReportableDetails(map[string]any{
					"payment_id": p.ID,
					"status":     result.Status,
				}).
				Mark(ierr.ErrGateway)
		}

		var description *string
		if req.Reason != "" {
			description = lo.ToPtr(req.Reason)
		}
		entry := &ledger.TransactionHistoryEntry{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
			UserID:      p.UserID,
			PaymentID:   lo.ToPtr(p.ID),
			Type:        types.TransactionTypeRefund,
			Amount:      amount.Neg(),
			Currency:    p.Currency,
			Description: description,
			CreatedAt:   now,
		}
		if err := s.LedgerRepo.Create(ctx, entry); err != nil {
			return err
		}

		resp = &dto.RefundResponse{
			PaymentID: p.ID,
			Amount:    amount,
			Status:    result.Status.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// refundedTotal sums the absolute value of all REFUND ledger entries
// recorded against a payment
func (s *paymentService) refundedTotal(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	filter := types.NewNoLimitTransactionFilter()
	filter.PaymentID = &paymentID
	filter.TransactionType = lo.ToPtr(types.TransactionTypeRefund)
	entries, err := s.LedgerRepo.List(ctx, filter)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount.Abs())
	}
	return total, nil
}

func (s *paymentService) SavePaymentMethod(ctx context.Context, req *dto.SavePaymentMethodRequest) (*dto.PaymentMethodResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()
	saved, err := s.Gateway.SavePaymentMethod(gwCtx, req.UserID, req.PaymentToken)
	if err != nil {
		return nil, err
	}

	ref := &paymentmethod.PaymentMethodRef{
		ID:                      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_METHOD),
		UserID:                  req.UserID,
		Provider:                s.Gateway.Name(),
		ProviderPaymentMethodID: saved.ProviderPaymentMethodID,
		IsDefault:               req.SetDefault,
		BaseModel:               types.GetDefaultBaseModel(ctx),
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// The user keeps at most one default method
		if req.SetDefault {
			existing, err := s.PaymentMethodRepo.ListByUser(ctx, req.UserID)
			if err != nil {
				return err
			}
			for _, m := range existing {
				if m.IsDefault {
					m.IsDefault = false
					m.UpdatedAt = time.Now().UTC()
					if err := s.PaymentMethodRepo.Update(ctx, m); err != nil {
						return err
					}
				}
			}
		}
		return s.PaymentMethodRepo.Create(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentMethodResponse(ref), nil
}

func (s *paymentService) ListPaymentMethods(ctx context.Context, userID string) ([]*dto.PaymentMethodResponse, error) {
	if userID == "" {
		return nil, ierr.NewError("user_id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	methods, err := s.PaymentMethodRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.PaymentMethodResponse, 0, len(methods))
	for _, m := range methods {
		resp = append(resp, dto.NewPaymentMethodResponse(m))
	}
	return resp, nil
}

func (s *paymentService) ListTransactions(ctx context.Context, filter *types.TransactionFilter) (*dto.ListTransactionsResponse, error) {
	if filter == nil {
		filter = &types.TransactionFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	entries, err := s.LedgerRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.LedgerRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListTransactionsResponse{
		Items: make([]*dto.TransactionResponse, 0, len(entries)),
		Total: total,
	}
	for _, entry := range entries {
		resp.Items = append(resp.Items, &dto.TransactionResponse{TransactionHistoryEntry: entry})
	}
	return resp, nil
}
