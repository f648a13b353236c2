package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"huddle/internal/types"
)

// CustomerLinkRepository persists the mapping between Huddle users and
// payment-provider customer identities.
type CustomerLinkRepository struct {
	db DBTX
}

func NewCustomerLinkRepository(db DBTX) *CustomerLinkRepository {
	return &CustomerLinkRepository{db: db}
}

// GetByUserID returns the link for a user. Returns an AppError with code
// not_found_customer when no link exists.
func (r *CustomerLinkRepository) GetByUserID(ctx context.Context, userID string) (*types.CustomerLink, error) {
	query := `
		SELECT id, user_id, external_customer_id, email, created_at
		FROM customer_links
		WHERE user_id = $1`

	link, err := r.scanLink(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "no customer link for user", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query customer link", err)
	}
	return link, nil
}

// GetByExternalCustomerID returns the link owning a provider customer id.
// Webhook reconciliation uses this as its only correlation path for
// subscription lifecycle events; a miss means the customer is unknown.
func (r *CustomerLinkRepository) GetByExternalCustomerID(ctx context.Context, externalID string) (*types.CustomerLink, error) {
	query := `
		SELECT id, user_id, external_customer_id, email, created_at
		FROM customer_links
		WHERE external_customer_id = $1`

	link, err := r.scanLink(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "no customer link for external customer id", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query customer link", err)
	}
	return link, nil
}

// Create inserts a new link. Concurrent creation for the same user is a
// benign race (two tabs racing through first checkout); the first insert wins
// and the conflict is ignored so both requests proceed with a valid link.
func (r *CustomerLinkRepository) Create(ctx context.Context, link *types.CustomerLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO customer_links (id, user_id, external_customer_id, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, link.ID, link.UserID, link.ExternalCustomerID, link.Email, link.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert customer link", err)
	}
	return nil
}

// Upsert writes a link discovered from a webhook, overwriting the external
// customer id and email if the user already has a link. Reconciliation trusts
// the provider as the source of truth for this mapping.
func (r *CustomerLinkRepository) Upsert(ctx context.Context, link *types.CustomerLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO customer_links (id, user_id, external_customer_id, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			external_customer_id = EXCLUDED.external_customer_id,
			email = EXCLUDED.email`

	_, err := r.db.Exec(ctx, query, link.ID, link.UserID, link.ExternalCustomerID, link.Email, link.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert customer link", err)
	}
	return nil
}

func (r *CustomerLinkRepository) scanLink(row pgx.Row) (*types.CustomerLink, error) {
	var link types.CustomerLink
	err := row.Scan(&link.ID, &link.UserID, &link.ExternalCustomerID, &link.Email, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
