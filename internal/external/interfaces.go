package external

import (
	"context"
	"time"

	"huddle/internal/types"
)

// ---------------------------------------------------------------------------
// Payment Gateway Integration (Stripe)
// ---------------------------------------------------------------------------

// PaymentGateway abstracts interactions with the payment provider (Stripe).
// Implementations translate between domain types and vendor-specific APIs.
type PaymentGateway interface {
	// CreateCustomer creates a provider-side customer carrying the Huddle user
	// id as metadata so webhook events can always be matched back to the user.
	// Returns the provider's customer id.
	CreateCustomer(ctx context.Context, email string, userID string) (string, error)

	// EnsureCoupon idempotently creates the provider-side discount object for
	// the given terms, using the normalized code as its external identifier.
	// A coupon that already exists under that id is a success, so two
	// concurrent checkouts never race on creation.
	EnsureCoupon(ctx context.Context, terms types.DiscountTerms) error

	// CreateCheckoutSession generates a hosted checkout URL for the user to
	// enter payment info.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (checkoutURL string, err error)

	// GetSubscription retrieves a subscription by its provider id. Used during
	// checkout-completion reconciliation when the session references a
	// subscription but carries no plan metadata.
	GetSubscription(ctx context.Context, subscriptionID string) (*GatewaySubscription, error)
}

// CheckoutSessionParams is the input for creating a hosted checkout session.
// UserID is attached as session metadata; it is the primary correlation key
// for the completion webhook.
type CheckoutSessionParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	Discount   *types.DiscountTerms // nil = no discount applied
	URLs       types.RedirectURLs
}

// GatewaySubscription is the provider subscription snapshot the reconciler
// consumes. Status is the provider's raw lifecycle string; PlanMetadata is
// the optional explicit plan override from subscription metadata.
type GatewaySubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	Interval           types.BillingInterval
	PlanMetadata       string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// WebhookVerifier abstracts Stripe webhook signature checking.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the provided signature header
	// and signing secret. Returns nil on success, an error on failure.
	// Verification runs over the raw bytes, before any parsing.
	Verify(payload []byte, header string, secret string) error
}

// Stripe event type constants prevent magic strings in webhook handlers.
const (
	EventStripeCheckoutCompleted = "checkout.session.completed"
	EventStripeSubUpdated        = "customer.subscription.updated"
	EventStripeSubDeleted        = "customer.subscription.deleted"
)
