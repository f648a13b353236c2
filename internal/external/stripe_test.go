package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/types"
)

func newTestStripeClient(t *testing.T, server *httptest.Server) *StripeClient {
	t.Helper()
	base := NewBaseClient(
		server.Client(),
		"stripe-"+t.Name(),
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"Huddle/1.0",
		WithSleepFunc(func(time.Duration) {}),
	)
	return NewStripeClientWithBase(base, StripeClientConfig{
		SecretKey: types.SecretString("sk_test_123"),
		BaseURL:   server.URL,
	})
}

func TestStripeClient_CreateCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/customers", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ada@example.com", r.PostForm.Get("email"))
		assert.Equal(t, "user_1", r.PostForm.Get("metadata[user_id]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cus_new","email":"ada@example.com"}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	id, err := client.CreateCustomer(context.Background(), "ada@example.com", "user_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
}

func TestStripeClient_EnsureCoupon_CreatesPercentage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/coupons", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "SAVE20", r.PostForm.Get("id"))
		assert.Equal(t, "20", r.PostForm.Get("percent_off"))
		assert.Equal(t, "once", r.PostForm.Get("duration"))

		_, _ = w.Write([]byte(`{"id":"SAVE20"}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	err := client.EnsureCoupon(context.Background(), types.DiscountTerms{
		Code:  "SAVE20",
		Type:  types.DiscountPercentage,
		Value: 20,
	})
	require.NoError(t, err)
}

func TestStripeClient_EnsureCoupon_AlreadyExistsIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_already_exists","message":"Coupon already exists."}}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	err := client.EnsureCoupon(context.Background(), types.DiscountTerms{
		Code:  "SAVE20",
		Type:  types.DiscountPercentage,
		Value: 20,
	})
	require.NoError(t, err)
}

func TestStripeClient_EnsureCoupon_OtherErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"parameter_invalid_integer","message":"bad percent_off"}}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	err := client.EnsureCoupon(context.Background(), types.DiscountTerms{
		Code:  "SAVE20",
		Type:  types.DiscountPercentage,
		Value: 20,
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamStripe, appErr.Code)
}

func TestStripeClient_CreateCheckoutSession_WithDiscount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_abc", r.PostForm.Get("customer"))
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "user_1", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "user_1", r.PostForm.Get("metadata[user_id]"))
		assert.Equal(t, "price_monthly", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "SAVE20", r.PostForm.Get("discounts[0][coupon]"))
		assert.Equal(t, "https://app.huddle.dev/billing?status=success", r.PostForm.Get("success_url"))

		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://checkout.stripe.com/c/pay/cs_1"}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	url, err := client.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		CustomerID: "cus_abc",
		PriceID:    "price_monthly",
		UserID:     "user_1",
		Discount:   &types.DiscountTerms{Code: "SAVE20", Type: types.DiscountPercentage, Value: 20},
		URLs: types.RedirectURLs{
			Success: "https://app.huddle.dev/billing?status=success",
			Cancel:  "https://app.huddle.dev/billing?status=cancelled",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", url)
}

func TestStripeClient_CreateCheckoutSession_NoDiscountOmitsParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.False(t, r.PostForm.Has("discounts[0][coupon]"))
		_, _ = w.Write([]byte(`{"id":"cs_2","url":"https://checkout.stripe.com/c/pay/cs_2"}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	_, err := client.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		CustomerID: "cus_abc",
		PriceID:    "price_monthly",
		UserID:     "user_1",
	})
	require.NoError(t, err)
}

func TestStripeClient_GetSubscription_MapsFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub_123", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "sub_123",
			"customer": "cus_abc",
			"status": "active",
			"cancel_at_period_end": true,
			"current_period_start": 1735689600,
			"current_period_end": 1738368000,
			"metadata": {"plan": "yearly"},
			"items": {"data": [{"price": {"id": "price_yearly", "recurring": {"interval": "year"}}}]}
		}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	sub, err := client.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)

	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "cus_abc", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, types.IntervalYear, sub.Interval)
	assert.Equal(t, "yearly", sub.PlanMetadata)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.After(*sub.CurrentPeriodStart))
}

func TestStripeClient_GetSubscription_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	}))
	defer server.Close()

	client := newTestStripeClient(t, server)

	_, err := client.GetSubscription(context.Background(), "sub_123")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}
