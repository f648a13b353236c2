package billing

import (
	"io"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/external"
	"huddle/internal/types"
)

type fakeResolver struct {
	id  string
	err error
}

func (f *fakeResolver) Resolve(context.Context, types.Identity) (string, error) {
	return f.id, f.err
}

type fakeRedeemer struct {
	terms *types.DiscountTerms
	err   error
	calls int
}

func (f *fakeRedeemer) Redeem(_ context.Context, code string) (*types.DiscountTerms, error) {
	f.calls++
	return f.terms, f.err
}

type fakeCheckoutGateway struct {
	ensureErr    error
	ensuredTerms []types.DiscountTerms
	sessionURL   string
	sessionErr   error
	lastParams   *external.CheckoutSessionParams
}

func (f *fakeCheckoutGateway) EnsureCoupon(_ context.Context, terms types.DiscountTerms) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.ensuredTerms = append(f.ensuredTerms, terms)
	return nil
}

func (f *fakeCheckoutGateway) CreateCheckoutSession(_ context.Context, params external.CheckoutSessionParams) (string, error) {
	f.lastParams = &params
	return f.sessionURL, f.sessionErr
}

var testURLs = types.RedirectURLs{
	Success: "https://app.huddle.dev/billing?status=success",
	Cancel:  "https://app.huddle.dev/billing?status=cancelled",
}

func newTestOrchestrator(resolver customerResolver, redeemer couponRedeemer, gateway checkoutGateway) *CheckoutOrchestrator {
	return NewCheckoutOrchestrator(resolver, redeemer, gateway, testURLs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheckoutOrchestrator_WithoutCoupon(t *testing.T) {
	redeemer := &fakeRedeemer{}
	gateway := &fakeCheckoutGateway{sessionURL: "https://checkout.stripe.com/c/pay/cs_1"}
	orch := newTestOrchestrator(&fakeResolver{id: "cus_abc"}, redeemer, gateway)

	url, err := orch.CreateSession(context.Background(),
		types.Identity{UserID: "user_1", Email: "ada@example.com"}, "price_monthly", "")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", url)

	assert.Zero(t, redeemer.calls)
	require.NotNil(t, gateway.lastParams)
	assert.Equal(t, "cus_abc", gateway.lastParams.CustomerID)
	assert.Equal(t, "price_monthly", gateway.lastParams.PriceID)
	assert.Equal(t, "user_1", gateway.lastParams.UserID)
	assert.Nil(t, gateway.lastParams.Discount)
	assert.Equal(t, testURLs, gateway.lastParams.URLs)
}

func TestCheckoutOrchestrator_WithApplicableCoupon(t *testing.T) {
	terms := &types.DiscountTerms{Code: "SAVE20", Type: types.DiscountPercentage, Value: 20}
	gateway := &fakeCheckoutGateway{sessionURL: "https://checkout.stripe.com/c/pay/cs_1"}
	orch := newTestOrchestrator(&fakeResolver{id: "cus_abc"}, &fakeRedeemer{terms: terms}, gateway)

	_, err := orch.CreateSession(context.Background(),
		types.Identity{UserID: "user_1"}, "price_monthly", "save20")
	require.NoError(t, err)

	require.Len(t, gateway.ensuredTerms, 1)
	assert.Equal(t, "SAVE20", gateway.ensuredTerms[0].Code)
	require.NotNil(t, gateway.lastParams.Discount)
	assert.Equal(t, "SAVE20", gateway.lastParams.Discount.Code)
}

func TestCheckoutOrchestrator_InapplicableCouponProceedsSilently(t *testing.T) {
	gateway := &fakeCheckoutGateway{sessionURL: "https://checkout.stripe.com/c/pay/cs_1"}
	orch := newTestOrchestrator(&fakeResolver{id: "cus_abc"}, &fakeRedeemer{terms: nil}, gateway)

	url, err := orch.CreateSession(context.Background(),
		types.Identity{UserID: "user_1"}, "price_monthly", "NOPE")
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	assert.Empty(t, gateway.ensuredTerms)
	assert.Nil(t, gateway.lastParams.Discount)
}

func TestCheckoutOrchestrator_CouponRejectionAbortsCheckout(t *testing.T) {
	redeemErr := types.NewAppError(types.ErrCodeCouponLimitExceeded, "coupon redemption limit reached", nil)
	gateway := &fakeCheckoutGateway{sessionURL: "https://checkout.stripe.com/c/pay/cs_1"}
	orch := newTestOrchestrator(&fakeResolver{id: "cus_abc"}, &fakeRedeemer{err: redeemErr}, gateway)

	_, err := orch.CreateSession(context.Background(),
		types.Identity{UserID: "user_1"}, "price_monthly", "SAVE20")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeCouponLimitExceeded, appErr.Code)
	assert.Nil(t, gateway.lastParams, "no session may be created after a coupon rejection")
}

func TestCheckoutOrchestrator_EnsureCouponFailureAborts(t *testing.T) {
	terms := &types.DiscountTerms{Code: "SAVE20", Type: types.DiscountPercentage, Value: 20}
	gateway := &fakeCheckoutGateway{
		ensureErr:  types.NewAppError(types.ErrCodeUpstreamUnavailable, "stripe down", nil),
		sessionURL: "https://checkout.stripe.com/c/pay/cs_1",
	}
	orch := newTestOrchestrator(&fakeResolver{id: "cus_abc"}, &fakeRedeemer{terms: terms}, gateway)

	_, err := orch.CreateSession(context.Background(),
		types.Identity{UserID: "user_1"}, "price_monthly", "SAVE20")
	require.Error(t, err)
	assert.Nil(t, gateway.lastParams)
}

func TestCheckoutOrchestrator_ResolveFailureAborts(t *testing.T) {
	resolver := &fakeResolver{err: types.NewAppError(types.ErrCodeInternalDB, "db down", nil)}
	redeemer := &fakeRedeemer{}
	gateway := &fakeCheckoutGateway{}
	orch := newTestOrchestrator(resolver, redeemer, gateway)

	_, err := orch.CreateSession(context.Background(),
		types.Identity{UserID: "user_1"}, "price_monthly", "SAVE20")
	require.Error(t, err)
	assert.Zero(t, redeemer.calls, "the coupon must not be consumed when the customer cannot be resolved")
}
