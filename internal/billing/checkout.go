package billing

import (
	"context"
	"log/slog"

	"huddle/internal/external"
	"huddle/internal/types"
)

// customerResolver resolves an identity to a provider customer id.
type customerResolver interface {
	Resolve(ctx context.Context, identity types.Identity) (string, error)
}

// couponRedeemer consumes one use of a discount code.
type couponRedeemer interface {
	Redeem(ctx context.Context, code string) (*types.DiscountTerms, error)
}

// checkoutGateway is the slice of the payment gateway the orchestrator needs.
type checkoutGateway interface {
	EnsureCoupon(ctx context.Context, terms types.DiscountTerms) error
	CreateCheckoutSession(ctx context.Context, params external.CheckoutSessionParams) (string, error)
}

// CheckoutOrchestrator composes the customer resolver and coupon redeemer
// into the synchronous checkout flow. It runs request-scoped and sequential;
// concurrent checkouts only contend on the coupon row, which serializes
// inside the store.
type CheckoutOrchestrator struct {
	customers customerResolver
	coupons   couponRedeemer
	gateway   checkoutGateway
	urls      types.RedirectURLs
	logger    *slog.Logger
}

func NewCheckoutOrchestrator(
	customers customerResolver,
	coupons couponRedeemer,
	gateway checkoutGateway,
	urls types.RedirectURLs,
	logger *slog.Logger,
) *CheckoutOrchestrator {
	return &CheckoutOrchestrator{
		customers: customers,
		coupons:   coupons,
		gateway:   gateway,
		urls:      urls,
		logger:    logger,
	}
}

// CreateSession resolves the customer, optionally redeems the coupon, and
// creates the hosted checkout session. A coupon rejection (expired or
// exhausted) aborts the whole checkout; a merely inapplicable code is skipped
// silently. Coupon usage is charged at session creation, not at payment
// completion: a user who redeems and then abandons checkout has still
// consumed one use.
func (o *CheckoutOrchestrator) CreateSession(ctx context.Context, identity types.Identity, priceID string, couponCode string) (string, error) {
	customerID, err := o.customers.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}

	var discount *types.DiscountTerms
	if couponCode != "" {
		terms, err := o.coupons.Redeem(ctx, couponCode)
		if err != nil {
			return "", err
		}
		if terms != nil {
			if err := o.gateway.EnsureCoupon(ctx, *terms); err != nil {
				return "", err
			}
			discount = terms
			o.logger.InfoContext(ctx, "coupon redeemed for checkout",
				"user_id", identity.UserID,
				"code", terms.Code,
			)
		}
	}

	checkoutURL, err := o.gateway.CreateCheckoutSession(ctx, external.CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     identity.UserID,
		Discount:   discount,
		URLs:       o.urls,
	})
	if err != nil {
		return "", err
	}

	return checkoutURL, nil
}
