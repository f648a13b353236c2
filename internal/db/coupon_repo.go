package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"huddle/internal/types"
)

// CouponRepository reads and consumes discount codes. Codes are stored upper
// case; callers normalize before lookup.
type CouponRepository struct {
	db DBTX
}

func NewCouponRepository(db DBTX) *CouponRepository {
	return &CouponRepository{db: db}
}

// GetByCode returns the coupon record, or (nil, nil) when no such code exists.
// An unknown code is a normal outcome for the redemption flow, not an error.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*types.CouponRecord, error) {
	query := `
		SELECT code, discount_type, discount_value, usage_limit, used_count,
		       expires_at, is_active, updated_at
		FROM coupon_records
		WHERE code = $1`

	var rec types.CouponRecord
	err := r.db.QueryRow(ctx, query, code).Scan(
		&rec.Code,
		&rec.DiscountType,
		&rec.DiscountValue,
		&rec.UsageLimit,
		&rec.UsedCount,
		&rec.ExpiresAt,
		&rec.IsActive,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query coupon record", err)
	}
	return &rec, nil
}

// ConsumeOnce atomically claims one redemption of the code. The eligibility
// check and the increment are a single conditional UPDATE so that two
// concurrent redemptions can never both pass a limit of used_count+1.
// Returns false when the row exists but is inactive, expired, or exhausted
// (or does not exist at all); the caller re-reads to classify the refusal.
func (r *CouponRepository) ConsumeOnce(ctx context.Context, code string) (bool, error) {
	query := `
		UPDATE coupon_records
		SET used_count = used_count + 1,
		    updated_at = NOW()
		WHERE code = $1
		  AND is_active
		  AND (expires_at IS NULL OR expires_at > NOW())
		  AND (usage_limit IS NULL OR used_count < usage_limit)`

	tag, err := r.db.Exec(ctx, query, code)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to consume coupon", err)
	}
	return tag.RowsAffected() > 0, nil
}
