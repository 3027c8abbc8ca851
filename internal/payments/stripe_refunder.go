package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/core2cover/api/internal/services"
)

// StripeLogger defines the logging contract for Stripe refund operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// StripeRefunderConfig configures the StripeRefunder.
type StripeRefunderConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	refunds   stripeRefundAPI
}

// StripeRefunder pays refunds back to the Payment Intent an order was paid with.
type StripeRefunder struct {
	refunds stripeRefundAPI
	account string
	logger  StripeLogger
}

var _ services.RefundGateway = (*StripeRefunder)(nil)

// NewStripeRefunder constructs a refunder using the given configuration.
func NewStripeRefunder(cfg StripeRefunderConfig) (*StripeRefunder, error) {
	api := cfg.refunds
	if api == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		api = client.New(apiKey, cfg.Backends).Refunds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeRefunder{
		refunds: api,
		account: strings.TrimSpace(cfg.AccountID),
		logger:  logger,
	}, nil
}

// Refund creates a refund against req.PaymentReference. IdempotencyKey is forwarded to Stripe so
// retries of the same return resolve to the same refund.
func (r *StripeRefunder) Refund(ctx context.Context, req services.RefundRequest) (services.RefundResult, error) {
	if r == nil {
		return services.RefundResult{}, errors.New("stripe: refunder is nil")
	}
	intentID := strings.TrimSpace(req.PaymentReference)
	if intentID == "" {
		return services.RefundResult{}, fmt.Errorf("%w: payment reference is required", ErrInvalidRefund)
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return services.RefundResult{}, fmt.Errorf("%w: idempotency key is required", ErrInvalidRefund)
	}
	amount, err := MinorUnits(req.Amount, req.Currency)
	if err != nil {
		return services.RefundResult{}, err
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amount),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(key)
	if r.account != "" {
		params.SetStripeAccount(r.account)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	refund, err := r.refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			r.logger(ctx, "payments.stripe.refund.error", map[string]any{
				"paymentIntent": intentID,
				"code":          string(stripeErr.Code),
				"requestId":     stripeErr.RequestID,
			})
		}
		return services.RefundResult{}, fmt.Errorf("stripe: create refund: %w", err)
	}

	status := refundStatus(refund.Status)
	r.logger(ctx, "payments.stripe.refund.created", map[string]any{
		"paymentIntent": intentID,
		"refundId":      refund.ID,
		"status":        string(status),
		"amount":        amount,
	})
	if status == StatusFailed {
		return services.RefundResult{}, fmt.Errorf("%w: refund %s is %s", ErrRefundDeclined, refund.ID, refund.Status)
	}
	return services.RefundResult{Reference: refund.ID, Status: string(status)}, nil
}

func refundStatus(status stripe.RefundStatus) Status {
	switch status {
	case stripe.RefundStatusSucceeded:
		return StatusSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}
