// Package types defines the shared domain model for the Huddle billing
// service: plan tiers, subscription state, coupon records, and the error
// and context plumbing used across all layers.
package types

import "time"

// PlanType identifies the billing plan a user is on.
type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanMonthly PlanType = "monthly"
	PlanYearly  PlanType = "yearly"
)

// SubscriptionStatus mirrors the provider's subscription lifecycle string.
// The local state machine only distinguishes {free, active, past_due,
// canceled}; other provider statuses are stored verbatim.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusPastDue  SubscriptionStatus = "past_due"
	SubStatusCanceled SubscriptionStatus = "canceled"
	SubStatusTrialing SubscriptionStatus = "trialing"
	SubStatusUnpaid   SubscriptionStatus = "unpaid"
)

// BillingInterval is the provider-side recurrence of a subscription price.
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// CustomerLink maps an authenticated Huddle user to the payment provider's
// customer identity. Created on first checkout or on the first webhook that
// references an unseen user; never deleted.
type CustomerLink struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	ExternalCustomerID string    `json:"external_customer_id"`
	Email              string    `json:"email"`
	CreatedAt          time.Time `json:"created_at"`
}

// DiscountType distinguishes percentage coupons from fixed-amount coupons.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

// CouponRecord is a discount code with a usage quota. The code is stored
// case-normalized (upper case). UsedCount is mutated only through the
// repository's atomic compare-and-increment; it never exceeds UsageLimit
// once a limit is set.
type CouponRecord struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int64        `json:"discount_value"`
	UsageLimit    *int         `json:"usage_limit"` // nil = unlimited
	UsedCount     int          `json:"used_count"`
	ExpiresAt     *time.Time   `json:"expires_at"` // nil = never expires
	IsActive      bool         `json:"is_active"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// DiscountTerms is the slice of a CouponRecord the checkout flow attaches to
// a session.
type DiscountTerms struct {
	Code  string       `json:"code"`
	Type  DiscountType `json:"type"`
	Value int64        `json:"value"`
}

// SubscriptionRecord is the durable per-user subscription state. Exactly one
// record per user; absence is equivalent to the implicit free state.
// UpdatedAt is monotonically non-decreasing per user: a write carrying an
// older event timestamp must never overwrite a newer snapshot.
type SubscriptionRecord struct {
	UserID                 string             `json:"user_id"`
	ExternalCustomerID     string             `json:"external_customer_id"`
	ExternalSubscriptionID *string            `json:"external_subscription_id"`
	PlanType               PlanType           `json:"plan_type"`
	Status                 SubscriptionStatus `json:"status"`
	CurrentPeriodStart     *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// FreeSubscription returns the implicit record for a user with no stored row.
func FreeSubscription(userID string) *SubscriptionRecord {
	return &SubscriptionRecord{
		UserID:   userID,
		PlanType: PlanFree,
		Status:   SubStatusCanceled,
	}
}

// RedirectURLs carries the server-constructed checkout return destinations.
type RedirectURLs struct {
	Success string
	Cancel  string
}
