package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"huddle/internal/types"
)

// UserRepository is a read-only view over the identity service's users table.
// Billing only needs it for the email-fallback correlation on checkout
// completion, when a session arrives without user-id metadata.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetIDByEmail returns the user id owning the email address. Returns an
// AppError with code not_found_user when no account matches.
func (r *UserRepository) GetIDByEmail(ctx context.Context, email string) (string, error) {
	query := `SELECT id FROM users WHERE email = $1`

	var id string
	err := r.db.QueryRow(ctx, query, email).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeNotFoundUser, "no user for email", err)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to query user by email", err)
	}
	return id, nil
}
