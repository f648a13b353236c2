package billing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"huddle/internal/types"
)

// couponStore is the slice of the coupon repository the redeemer needs.
type couponStore interface {
	GetByCode(ctx context.Context, code string) (*types.CouponRecord, error)
	ConsumeOnce(ctx context.Context, code string) (bool, error)
}

// CouponRedeemer validates a discount code and consumes one use of its quota.
// The quota claim is a single atomic conditional increment in the store; the
// reads around it only classify outcomes and never decide eligibility.
type CouponRedeemer struct {
	store  couponStore
	logger *slog.Logger
	nowFn  func() time.Time
}

func NewCouponRedeemer(store couponStore, logger *slog.Logger) *CouponRedeemer {
	return &CouponRedeemer{
		store:  store,
		logger: logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeCouponCode canonicalizes user input for lookup. Codes are stored
// upper case.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem attempts to consume one use of the code. Outcomes:
//   - (terms, nil): the redemption was claimed; attach terms to the session.
//   - (nil, nil): the code is unknown or inactive. Not an error; the caller
//     proceeds without a discount.
//   - (nil, err): coupon_expired or coupon_limit_exceeded, or a store failure.
func (r *CouponRedeemer) Redeem(ctx context.Context, code string) (*types.DiscountTerms, error) {
	normalized := NormalizeCouponCode(code)
	if normalized == "" {
		return nil, nil
	}

	rec, err := r.store.GetByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.IsActive {
		r.logger.InfoContext(ctx, "coupon not applicable", "code", normalized)
		return nil, nil
	}
	if refusal := r.classifyRefusal(rec); refusal != nil {
		return nil, refusal
	}

	consumed, err := r.store.ConsumeOnce(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// Lost a race between the read and the claim; re-read to report the
		// reason the conditional update refused.
		rec, err = r.store.GetByCode(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if rec == nil || !rec.IsActive {
			return nil, nil
		}
		if refusal := r.classifyRefusal(rec); refusal != nil {
			return nil, refusal
		}
		// The row mutated between the claim and the re-read and now looks
		// eligible again. Refusing here keeps the quota invariant intact.
		return nil, types.NewAppError(types.ErrCodeCouponLimitExceeded,
			"coupon could not be redeemed", nil)
	}

	return &types.DiscountTerms{
		Code:  rec.Code,
		Type:  rec.DiscountType,
		Value: rec.DiscountValue,
	}, nil
}

// classifyRefusal reports why an active record cannot be redeemed, or nil if
// it looks eligible.
func (r *CouponRedeemer) classifyRefusal(rec *types.CouponRecord) *types.AppError {
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(r.nowFn()) {
		return types.NewAppErrorWithDetails(types.ErrCodeCouponExpired,
			"coupon has expired", nil,
			map[string]any{"code": rec.Code})
	}
	if rec.UsageLimit != nil && rec.UsedCount >= *rec.UsageLimit {
		return types.NewAppErrorWithDetails(types.ErrCodeCouponLimitExceeded,
			"coupon redemption limit reached", nil,
			map[string]any{"code": rec.Code})
	}
	return nil
}
