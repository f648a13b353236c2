package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"huddle/internal/types"
)

// SubscriptionRepository persists the single durable subscription row per
// user. Writes carry the originating event's timestamp as updated_at and are
// guarded so a stale event can never overwrite a newer snapshot.
type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByUserID returns the stored record, or (nil, nil) when the user has no
// row. Absence means the implicit free state; the caller substitutes
// types.FreeSubscription.
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*types.SubscriptionRecord, error) {
	query := `
		SELECT user_id, external_customer_id, external_subscription_id,
		       plan_type, status, current_period_start, current_period_end,
		       cancel_at_period_end, updated_at
		FROM subscription_records
		WHERE user_id = $1`

	var rec types.SubscriptionRecord
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.ExternalCustomerID,
		&rec.ExternalSubscriptionID,
		&rec.PlanType,
		&rec.Status,
		&rec.CurrentPeriodStart,
		&rec.CurrentPeriodEnd,
		&rec.CancelAtPeriodEnd,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query subscription record", err)
	}
	return &rec, nil
}

// Upsert writes the record if and only if it is at least as new as the stored
// row. rec.UpdatedAt must be the originating event's created_at. The guard
// uses <= so replaying the same event performs the identical write, and a
// strictly older event touches nothing. Returns whether the write applied;
// false means the stored row is newer and the event is stale.
func (r *SubscriptionRepository) Upsert(ctx context.Context, rec *types.SubscriptionRecord) (bool, error) {
	query := `
		INSERT INTO subscription_records (
			user_id, external_customer_id, external_subscription_id,
			plan_type, status, current_period_start, current_period_end,
			cancel_at_period_end, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			external_customer_id = EXCLUDED.external_customer_id,
			external_subscription_id = EXCLUDED.external_subscription_id,
			plan_type = EXCLUDED.plan_type,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = EXCLUDED.updated_at
		WHERE subscription_records.updated_at <= EXCLUDED.updated_at`

	tag, err := r.db.Exec(ctx, query,
		rec.UserID,
		rec.ExternalCustomerID,
		rec.ExternalSubscriptionID,
		rec.PlanType,
		rec.Status,
		rec.CurrentPeriodStart,
		rec.CurrentPeriodEnd,
		rec.CancelAtPeriodEnd,
		rec.UpdatedAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscription record", err)
	}
	return tag.RowsAffected() > 0, nil
}
